package match

import (
	"fmt"
	"sort"
	"strings"

	"rareopen/internal/fuzzy"
	appLog "rareopen/internal/log"
	"rareopen/internal/model"
)

const (
	DefaultAdmissionCutoff = 60
	DefaultAcceptThreshold = 80
)

// Scorer compares two normalized names on a 0..100 scale.
type Scorer interface {
	Score(a, b string) (int, error)
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(a, b string) (int, error)

func (f ScorerFunc) Score(a, b string) (int, error) { return f(a, b) }

// WRatioScorer is the default Scorer.
var WRatioScorer = ScorerFunc(func(a, b string) (int, error) {
	return fuzzy.WRatio(a, b), nil
})

// PriceMatch describes how a schedule name was tied to a catalog entry.
type PriceMatch struct {
	House    string   `json:"house"`
	Query    string   `json:"query"`
	Key      string   `json:"key,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	Score    int      `json:"score"`
	Exact    bool     `json:"exact"`
	Price    *float64 `json:"glass_price,omitempty"`
}

// PriceMatcher locates the price-list entry for a schedule wine name.
type PriceMatcher struct {
	Normalizer *Normalizer
	Scorer     Scorer

	// AdmissionCutoff bounds the fuzzy candidate pool.
	AdmissionCutoff int
	// AcceptThreshold is the minimum score of the best candidate.
	AcceptThreshold int
}

// NewPriceMatcher returns a matcher with the default scorer and thresholds.
func NewPriceMatcher(n *Normalizer) *PriceMatcher {
	if n == nil {
		n = defaultNormalizer
	}
	return &PriceMatcher{
		Normalizer:      n,
		Scorer:          WRatioScorer,
		AdmissionCutoff: DefaultAdmissionCutoff,
		AcceptThreshold: DefaultAcceptThreshold,
	}
}

// FindPrice returns the glass price for name, or nil when the name cannot be
// tied to a single price-list entry of the same house.
func (m *PriceMatcher) FindPrice(name string, catalog model.Catalog, houses model.HouseSet) *float64 {
	pm, ok := m.Match(name, catalog, NewHouseIndex(houses))
	if !ok {
		return nil
	}
	return pm.Price
}

// Match resolves name to a catalog entry. The search is scoped to the
// entries of the resolved house; an exact normalized match wins outright,
// otherwise the best fuzzy candidate must reach AcceptThreshold.
func (m *PriceMatcher) Match(name string, catalog model.Catalog, houses *HouseIndex) (PriceMatch, bool) {
	var pm PriceMatch
	if name == "" || len(catalog) == 0 || houses == nil || houses.Len() == 0 {
		return pm, false
	}

	house, rest, ok := houses.Resolve(name)
	if !ok || rest == "" {
		return pm, false
	}
	pm.House = house

	query := m.Normalizer.Normalize(rest)
	if query == "" {
		return pm, false
	}
	pm.Query = query

	byKey, keys := m.houseKeys(house, catalog)
	if len(keys) == 0 {
		return pm, false
	}

	if full, ok := byKey[query]; ok {
		pm.Key = query
		pm.FullName = full
		pm.Score = 100
		pm.Exact = true
		pm.Price = catalog[full].GlassPrice
		return pm, true
	}

	key, score, err := m.bestCandidate(query, keys)
	if err != nil {
		appLog.Error("price match: similarity failed", err, "house", house, "query", query)
		return pm, false
	}
	pm.Key = key
	pm.Score = score
	if key == "" || score < m.AcceptThreshold {
		appLog.Debug("price match: no candidate accepted", "name", name, "best", key, "score", score)
		return pm, false
	}

	pm.FullName = byKey[key]
	pm.Price = catalog[pm.FullName].GlassPrice
	return pm, true
}

// houseKeys maps normalized remainder -> full name for every catalog entry
// starting with house. Entries are visited in sorted order and a later entry
// overwrites an earlier one with the same normalized remainder.
func (m *PriceMatcher) houseKeys(house string, catalog model.Catalog) (map[string]string, []string) {
	names := make([]string, 0)
	for full := range catalog {
		if full == "" || !hasPrefixFold(full, house) {
			continue
		}
		names = append(names, full)
	}
	sort.Strings(names)

	byKey := make(map[string]string, len(names))
	keys := make([]string, 0, len(names))
	for _, full := range names {
		key := m.Normalizer.Normalize(strings.TrimSpace(full[len(house):]))
		if prev, dup := byKey[key]; dup {
			appLog.Debug("price match: normalized name collision", "key", key, "dropped", prev, "kept", full)
		} else {
			keys = append(keys, key)
		}
		byKey[key] = full
	}
	return byKey, keys
}

// bestCandidate returns the highest scoring key at or above the admission
// cutoff. On a tie the key of the alphabetically first catalog name wins.
// A panicking scorer is reported as an error.
func (m *PriceMatcher) bestCandidate(query string, keys []string) (best string, bestScore int, err error) {
	defer func() {
		if r := recover(); r != nil {
			best, bestScore = "", 0
			err = fmt.Errorf("scorer panic: %v", r)
		}
	}()

	bestScore = -1
	for _, k := range keys {
		if k == "" {
			continue
		}
		s, serr := m.Scorer.Score(query, k)
		if serr != nil {
			return "", 0, fmt.Errorf("score %q: %w", k, serr)
		}
		if s < m.AdmissionCutoff {
			continue
		}
		if s > bestScore {
			best, bestScore = k, s
		}
	}
	if bestScore < 0 {
		return "", 0, nil
	}
	return best, bestScore, nil
}
