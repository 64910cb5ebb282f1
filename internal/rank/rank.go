// Package rank picks the next rare openings worth attending.
package rank

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	appLog "rareopen/internal/log"
	"rareopen/internal/match"
	"rareopen/internal/model"
)

const (
	DefaultMinScore   = 2
	DefaultMaxResults = 3

	scheduleLayout = "2006-01-02 15:04"
)

// DefaultSizeKeywords are checked in order; the first one found wins.
var DefaultSizeKeywords = []string{"magnum", "jeroboam", "methuselah", "nabuchodonosor"}

var yearRe = regexp.MustCompile(`\b(\d{4})\b`)

// Input is the read-only data one ranking call works on.
type Input struct {
	Schedule []model.ScheduleEntry
	Catalog  model.Catalog
	Houses   model.HouseSet
	Slots    []model.TastingSlot
	// Tasted holds normalized names of wines already tasted.
	Tasted map[string]struct{}
	Base   model.Preferences
}

// Ranker filters, scores and orders schedule entries.
type Ranker struct {
	Matcher      *match.PriceMatcher
	SizeKeywords []string
	MinScore     int
	MaxResults   int
	// Location is used to interpret schedule date/time strings.
	Location *time.Location
}

// New returns a Ranker with default policy.
func New(m *match.PriceMatcher) *Ranker {
	if m == nil {
		m = match.NewPriceMatcher(nil)
	}
	return &Ranker{
		Matcher:      m,
		SizeKeywords: DefaultSizeKeywords,
		MinScore:     DefaultMinScore,
		MaxResults:   DefaultMaxResults,
		Location:     time.Local,
	}
}

// Rank returns at most MaxResults openings after now that are free,
// not excluded and match at least MinScore preference axes, ordered by
// time and then by score. dyn, if set, overlays the base preferences for
// this call only. An empty result means nothing qualifies.
func (r *Ranker) Rank(in Input, now time.Time, dyn *model.Preferences) []model.ScoredOpening {
	prefs := in.Base.Overlay(dyn)
	excluded := r.exclusions(in.Tasted, prefs.ExcludedWines)
	houses := match.NewHouseIndex(in.Houses)

	candidates := make([]model.ScoredOpening, 0, len(in.Schedule))
	for _, entry := range in.Schedule {
		at, err := r.openingTime(entry)
		if err != nil {
			appLog.Warn("skipping schedule entry with invalid date/time",
				"name", entry.Name, "date", entry.Date, "time", entry.Time, "err", err)
			continue
		}
		if !at.After(now) {
			continue
		}
		if busy(in.Slots, at) {
			continue
		}
		if _, ok := excluded[r.Matcher.Normalizer.Normalize(entry.Name)]; ok {
			continue
		}
		candidates = append(candidates, model.ScoredOpening{ScheduleEntry: entry, At: at})
	}

	if len(candidates) == 0 {
		appLog.Info("no free future openings after schedule, slot and exclusion checks")
		return []model.ScoredOpening{}
	}

	scored := candidates[:0]
	for _, c := range candidates {
		if house, _, ok := houses.Resolve(c.Name); ok {
			c.House = &house
		}
		c.PreferenceScore = r.score(c, prefs)
		if c.PreferenceScore < r.MinScore {
			continue
		}
		if pm, ok := r.Matcher.Match(c.Name, in.Catalog, houses); ok {
			c.GlassPrice = pm.Price
		}
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if !scored[i].At.Equal(scored[j].At) {
			return scored[i].At.Before(scored[j].At)
		}
		return scored[i].PreferenceScore > scored[j].PreferenceScore
	})

	if r.MaxResults > 0 && len(scored) > r.MaxResults {
		scored = scored[:r.MaxResults]
	}
	return scored
}

func (r *Ranker) exclusions(tasted map[string]struct{}, extra []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tasted)+len(extra))
	for name := range tasted {
		out[r.Matcher.Normalizer.Normalize(name)] = struct{}{}
	}
	for _, name := range extra {
		out[r.Matcher.Normalizer.Normalize(name)] = struct{}{}
	}
	return out
}

func (r *Ranker) openingTime(e model.ScheduleEntry) (time.Time, error) {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(scheduleLayout, strings.TrimSpace(e.Date)+" "+strings.TrimSpace(e.Time), loc)
}

func busy(slots []model.TastingSlot, at time.Time) bool {
	for _, s := range slots {
		if s.Contains(at) {
			return true
		}
	}
	return false
}

// score counts satisfied preference axes: house, bottle size, vintage age.
func (r *Ranker) score(c model.ScoredOpening, prefs model.Preferences) int {
	score := 0
	if c.House != nil && containsFold(prefs.Houses, *c.House) {
		score++
	}
	if size := SizeTag(c.Name, r.SizeKeywords); size != "" && containsFold(prefs.Sizes, size) {
		score++
	}
	if prefs.OlderThanYear != nil {
		if year, ok := Year(c.Name); ok && year <= *prefs.OlderThanYear {
			score++
		}
	}
	return score
}

// SizeTag returns the first keyword that appears after a space in the
// lowercased name, or "".
func SizeTag(name string, keywords []string) string {
	lower := strings.ToLower(name)
	for _, k := range keywords {
		if strings.Contains(lower, " "+strings.ToLower(k)) {
			return k
		}
	}
	return ""
}

// Year returns the first standalone 4-digit number in name.
func Year(name string) (int, bool) {
	m := yearRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return y, true
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
