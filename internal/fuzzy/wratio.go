// Package fuzzy implements the weighted string similarity used to match
// schedule wine names against price-list names. Scores are integers in 0..100
// and follow the rapidfuzz definitions of ratio, partial_ratio, token_ratio,
// partial_token_ratio and WRatio.
package fuzzy

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

const (
	unbaseScale = 0.95
	// lengthRatioPartial is the length ratio above which substring
	// alignment starts to count.
	lengthRatioPartial = 1.5
	// lengthRatioLong switches to the harsher partial scale.
	lengthRatioLong = 8.0
)

// WRatio scores a and b with a token-order-insensitive weighted ratio.
//
// Both inputs are processed first: code points 128..255 are deleted,
// every other non-alphanumeric rune becomes a space and the rest is
// lowercased. Comparable lengths use the best of the plain ratio and the
// token ratio. Longer length ratios also try substring alignment, scaled
// down so a short string fully contained in a long one never reaches 100.
func WRatio(a, b string) int {
	p1 := process(a)
	p2 := process(b)
	if p1 == "" || p2 == "" {
		return 0
	}

	r1, r2 := []rune(p1), []rune(p2)
	l1, l2 := float64(len(r1)), float64(len(r2))
	lenRatio := math.Max(l1, l2) / math.Min(l1, l2)

	best := ratio(r1, r2)
	if lenRatio < lengthRatioPartial {
		tr := math.Max(tokenSortRatio(p1, p2), tokenSetRatio(p1, p2))
		return round(math.Max(best, tr*unbaseScale))
	}

	partialScale := 0.9
	if lenRatio >= lengthRatioLong {
		partialScale = 0.6
	}
	best = math.Max(best, partialRatio(r1, r2)*partialScale)
	best = math.Max(best, partialTokenRatio(p1, p2)*unbaseScale*partialScale)
	return round(best)
}

// Ratio is the plain normalized indel similarity of two strings.
func Ratio(a, b string) int {
	return round(ratio([]rune(a), []rune(b)))
}

func process(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		// Latin-1 supplement is dropped, not transliterated: "cuvée" -> "cuve".
		if r >= 128 && r <= 255 {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteByte(' ')
	}
	return strings.TrimSpace(b.String())
}

func round(f float64) int {
	return int(math.RoundToEven(f))
}

// normDistance maps an indel distance over lensum to 0..100.
func normDistance(dist, lensum int) float64 {
	if lensum == 0 {
		return 100
	}
	return 100 - 100*float64(dist)/float64(lensum)
}

func indelDistance(a, b []rune) int {
	return len(a) + len(b) - 2*lcs(a, b)
}

// indelSimilarity is the normalized indel similarity in 0..1.
func indelSimilarity(a, b []rune) float64 {
	lensum := len(a) + len(b)
	if lensum == 0 {
		return 1
	}
	return 1 - float64(indelDistance(a, b))/float64(lensum)
}

func ratio(a, b []rune) float64 {
	return 100 * indelSimilarity(a, b)
}

func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// partialRatio is the best ratio of the shorter string against any window
// of the longer one, including windows cut short at either end. For equal
// lengths both directions are tried.
func partialRatio(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 100
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	best := partialRatioShort(short, long)
	if best != 1 && len(a) == len(b) {
		best = math.Max(best, partialRatioShort(long, short))
	}
	return 100 * best
}

// partialRatioShort assumes len(short) <= len(long). Windows are only scored
// when the rune at their growing edge occurs in short.
func partialRatioShort(short, long []rune) float64 {
	n, m := len(short), len(long)
	if n == 0 {
		return 0
	}
	inShort := make(map[rune]struct{}, n)
	for _, r := range short {
		inShort[r] = struct{}{}
	}
	has := func(r rune) bool {
		_, ok := inShort[r]
		return ok
	}

	best := 0.0
	score := func(window []rune) bool {
		if s := indelSimilarity(short, window); s > best {
			best = s
		}
		return best == 1
	}

	// Prefixes shorter than short.
	for i := 1; i < n; i++ {
		if has(long[i-1]) && score(long[:i]) {
			return best
		}
	}
	// Full-length windows.
	windowEnd := m - n
	for i := 0; i < windowEnd; i++ {
		if has(long[i+n-1]) && score(long[i:i+n]) {
			return best
		}
	}
	// Suffixes, from full length down to one rune.
	for i := windowEnd; i < m; i++ {
		if has(long[i]) && score(long[i:]) {
			return best
		}
	}
	return best
}

func sortedJoin(tokens []string) string {
	out := append([]string(nil), tokens...)
	sort.Strings(out)
	return strings.Join(out, " ")
}

func runeLen(s string) int {
	return len([]rune(s))
}

// splitSets returns the sorted, de-duplicated intersection and both
// differences of the whitespace tokens of a and b.
func splitSets(a, b string) (sect, onlyA, onlyB []string) {
	setA := make(map[string]struct{})
	for _, t := range strings.Fields(a) {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{})
	for _, t := range strings.Fields(b) {
		setB[t] = struct{}{}
	}
	for t := range setA {
		if _, ok := setB[t]; ok {
			sect = append(sect, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if _, ok := setA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(sect)
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	return sect, onlyA, onlyB
}

func tokenSortRatio(a, b string) float64 {
	return ratio([]rune(sortedJoin(strings.Fields(a))), []rune(sortedJoin(strings.Fields(b))))
}

func tokenSetRatio(a, b string) float64 {
	sect, onlyA, onlyB := splitSets(a, b)
	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	diffAB := []rune(strings.Join(onlyA, " "))
	diffBA := []rune(strings.Join(onlyB, " "))
	sectLen := runeLen(strings.Join(sect, " "))
	sep := 0
	if sectLen > 0 {
		sep = 1
	}
	sectABLen := sectLen + sep + len(diffAB)
	sectBALen := sectLen + sep + len(diffBA)

	best := normDistance(indelDistance(diffAB, diffBA), sectABLen+sectBALen)
	if sectLen == 0 {
		return best
	}
	// The intersection against each "intersection + difference" string
	// only differs by the separator and the difference.
	best = math.Max(best, normDistance(sep+len(diffAB), sectLen+sectABLen))
	best = math.Max(best, normDistance(sep+len(diffBA), sectLen+sectBALen))
	return best
}

func partialTokenRatio(a, b string) float64 {
	sect, onlyA, onlyB := splitSets(a, b)
	if len(sect) > 0 {
		return 100
	}

	fa, fb := strings.Fields(a), strings.Fields(b)
	best := partialRatio([]rune(sortedJoin(fa)), []rune(sortedJoin(fb)))
	if len(fa) == len(onlyA) && len(fb) == len(onlyB) {
		return best
	}
	// Only reached with duplicate tokens.
	return math.Max(best, partialRatio(
		[]rune(strings.Join(onlyA, " ")),
		[]rune(strings.Join(onlyB, " ")),
	))
}
