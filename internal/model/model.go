package model

import "time"

// ScheduleEntry is one rare opening as handed over by the schedule parser.
// Date is "YYYY-MM-DD" and Time is "HH:MM"; the timestamp is derived per
// ranking request and never written back here.
type ScheduleEntry struct {
	Name  string `yaml:"name" json:"name"`
	Date  string `yaml:"date" json:"date"`
	Time  string `yaml:"time" json:"time"`
	Stand string `yaml:"stand" json:"stand"`
}

// CatalogEntry is one line of the price list.
type CatalogEntry struct {
	FullName   string   `yaml:"name" json:"name"`
	GlassPrice *float64 `yaml:"glass_price,omitempty" json:"glass_price,omitempty"`
}

// Catalog maps full wine name to its price-list entry. Read-only once loaded.
type Catalog map[string]CatalogEntry

// HouseSet is the set of known producer names used for prefix matching.
type HouseSet map[string]struct{}

// NewHouseSet builds a HouseSet from a list, skipping blanks.
func NewHouseSet(names ...string) HouseSet {
	hs := make(HouseSet, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		hs[n] = struct{}{}
	}
	return hs
}

// TastingSlot is a busy period [Start, End) during which no opening can be attended.
type TastingSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the half-open interval.
func (s TastingSlot) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// ScoredOpening is a schedule entry enriched for one ranking request.
type ScoredOpening struct {
	ScheduleEntry

	At              time.Time
	House           *string
	GlassPrice      *float64
	PreferenceScore int
}
