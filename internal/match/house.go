package match

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"rareopen/internal/model"
)

// HouseIndex holds house names ordered longest first, so a compound house
// such as "Bonnet-Gilmert" is tried before "Bonnet".
type HouseIndex struct {
	ordered []string
}

// NewHouseIndex sorts the house set once. Equal lengths are ordered
// lexicographically to keep resolution deterministic.
func NewHouseIndex(houses model.HouseSet) *HouseIndex {
	ordered := make([]string, 0, len(houses))
	for h := range houses {
		if strings.TrimSpace(h) == "" {
			continue
		}
		ordered = append(ordered, h)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i]) != len(ordered[j]) {
			return len(ordered[i]) > len(ordered[j])
		}
		return ordered[i] < ordered[j]
	})
	return &HouseIndex{ordered: ordered}
}

// Len returns the number of indexed houses.
func (x *HouseIndex) Len() int {
	return len(x.ordered)
}

// Resolve finds the house prefixing fullName. The match is case-insensitive
// and must end on a word boundary: the next rune, if any, must not be a
// letter or digit. ok is false when no house matches.
func (x *HouseIndex) Resolve(fullName string) (house, remainder string, ok bool) {
	for _, h := range x.ordered {
		if !hasHousePrefix(fullName, h) {
			continue
		}
		return h, strings.TrimSpace(fullName[len(h):]), true
	}
	return "", "", false
}

// ResolveHouse is a convenience wrapper building a throwaway index.
func ResolveHouse(fullName string, houses model.HouseSet) (house, remainder string, ok bool) {
	return NewHouseIndex(houses).Resolve(fullName)
}

func hasHousePrefix(name, house string) bool {
	if !hasPrefixFold(name, house) {
		return false
	}
	if len(name) == len(house) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(name[len(house):])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
