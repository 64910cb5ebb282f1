package model

// Preferences holds the recognized user preference options.
//
// A nil field means "not set". In an overlay, a nil field keeps the base
// value while a non-nil field (even an empty slice) replaces it. ExcludedWines
// is the exception: overlay exclusions are added to the base ones.
type Preferences struct {
	Houses        []string `yaml:"houses,omitempty" json:"houses,omitempty"`
	Sizes         []string `yaml:"sizes,omitempty" json:"sizes,omitempty"`
	OlderThanYear *int     `yaml:"older_than_year,omitempty" json:"older_than_year,omitempty"`
	ExcludedWines []string `yaml:"excluded_wines,omitempty" json:"excluded_wines,omitempty"`
}

// Clone returns a deep copy so callers can never alias the receiver's slices.
func (p Preferences) Clone() Preferences {
	out := Preferences{
		Houses:        cloneStrings(p.Houses),
		Sizes:         cloneStrings(p.Sizes),
		ExcludedWines: cloneStrings(p.ExcludedWines),
	}
	if p.OlderThanYear != nil {
		y := *p.OlderThanYear
		out.OlderThanYear = &y
	}
	return out
}

// Overlay returns the effective preferences for one request: a copy of p
// with dyn merged on top. p is never modified.
func (p Preferences) Overlay(dyn *Preferences) Preferences {
	out := p.Clone()
	if dyn == nil {
		return out
	}
	if dyn.Houses != nil {
		out.Houses = cloneStrings(dyn.Houses)
	}
	if dyn.Sizes != nil {
		out.Sizes = cloneStrings(dyn.Sizes)
	}
	if dyn.OlderThanYear != nil {
		y := *dyn.OlderThanYear
		out.OlderThanYear = &y
	}
	if len(dyn.ExcludedWines) > 0 {
		out.ExcludedWines = append(out.ExcludedWines, dyn.ExcludedWines...)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
