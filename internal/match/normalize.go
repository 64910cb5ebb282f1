// Package match resolves free-text wine names against the price list:
// normalization, house prefix resolution and price lookup.
package match

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultFormatTokens are the bottle-size and non-vintage words dropped
// during normalization.
var DefaultFormatTokens = []string{"magnum", "jeroboam", "methuselah", "nabuchodonosor", "nv"}

var baseYearRe = regexp.MustCompile(`\(\s*base\s+\d{4}\s*\)`)

// Normalizer canonicalizes wine names for comparison.
type Normalizer struct {
	formatTokens map[string]struct{}
}

// NewNormalizer returns a Normalizer dropping the given whole-word tokens.
// A nil list uses DefaultFormatTokens.
func NewNormalizer(formatTokens []string) *Normalizer {
	if formatTokens == nil {
		formatTokens = DefaultFormatTokens
	}
	n := &Normalizer{formatTokens: make(map[string]struct{}, len(formatTokens))}
	for _, t := range formatTokens {
		t = fold(strings.TrimSpace(t))
		if t != "" {
			n.formatTokens[t] = struct{}{}
		}
	}
	return n
}

var defaultNormalizer = NewNormalizer(nil)

// Normalize canonicalizes name using the default format tokens.
func Normalize(name string) string {
	return defaultNormalizer.Normalize(name)
}

// Normalize case-folds name, cuts it at the first '*', removes "(base YYYY)"
// annotations and format tokens, and collapses whitespace.
//
// The pass is repeated until it is stable so the result is idempotent even
// when a removal exposes a new removable pattern.
func (n *Normalizer) Normalize(name string) string {
	for {
		next := n.pass(name)
		if next == name {
			return next
		}
		name = next
	}
}

func (n *Normalizer) pass(s string) string {
	if s == "" {
		return ""
	}
	s = fold(s)
	if i := strings.IndexByte(s, '*'); i >= 0 {
		s = s[:i]
	}
	s = baseYearRe.ReplaceAllString(s, "")

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if _, drop := n.formatTokens[w]; drop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// fold is Unicode case folding. A Caser is stateful, so one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
