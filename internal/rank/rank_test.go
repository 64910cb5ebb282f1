package rank

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rareopen/internal/match"
	"rareopen/internal/model"
)

var now = time.Date(2025, 4, 25, 10, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func price(v float64) *float64 { return &v }

func entry(name, hhmm string) model.ScheduleEntry {
	return model.ScheduleEntry{Name: name, Date: "2025-04-25", Time: hhmm, Stand: "S-" + hhmm}
}

func newRanker() *Ranker {
	r := New(match.NewPriceMatcher(nil))
	r.Location = time.UTC
	return r
}

func baseInput() Input {
	return Input{
		Catalog: model.Catalog{
			"Krug Vintage 2008":   {FullName: "Krug Vintage 2008", GlassPrice: price(60)},
			"Bollinger R.D. 2004": {FullName: "Bollinger R.D. 2004", GlassPrice: price(55)},
		},
		Houses: model.NewHouseSet("Krug", "Bollinger", "Salon", "Bonnet"),
		Base: model.Preferences{
			Houses:        []string{"Krug", "Bollinger"},
			Sizes:         []string{"magnum"},
			OlderThanYear: intPtr(2010),
		},
	}
}

func names(out []model.ScoredOpening) []string {
	res := make([]string, 0, len(out))
	for _, o := range out {
		res = append(res, o.Name)
	}
	return res
}

func TestRankEndToEnd(t *testing.T) {
	t.Parallel()

	in := baseInput()
	// Scores: 1, 2, 3, 2, 3.
	in.Schedule = []model.ScheduleEntry{
		entry("Bonnet Brut 2006", "10:30"),
		entry("Bollinger R.D. 2004", "11:00"),
		entry("Krug Vintage 2008 Magnum", "12:00"),
		entry("Salon 2002 Magnum", "12:00"),
		entry("Bollinger Vieilles Vignes Françaises 2005 Magnum", "11:00"),
	}

	out := newRanker().Rank(in, now, nil)
	require.Len(t, out, 3)
	assert.Equal(t, []string{
		"Bollinger Vieilles Vignes Françaises 2005 Magnum",
		"Bollinger R.D. 2004",
		"Krug Vintage 2008 Magnum",
	}, names(out))

	assert.Equal(t, 3, out[0].PreferenceScore)
	assert.Equal(t, 2, out[1].PreferenceScore)
	assert.Equal(t, 3, out[2].PreferenceScore)

	require.NotNil(t, out[0].House)
	assert.Equal(t, "Bollinger", *out[0].House)
	assert.Nil(t, out[0].GlassPrice)
	assert.Equal(t, price(55), out[1].GlassPrice)
	assert.Equal(t, price(60), out[2].GlassPrice)
	assert.True(t, out[0].At.Equal(time.Date(2025, 4, 25, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, "S-11:00", out[0].Stand)
}

func TestRankScoreFloor(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Schedule = []model.ScheduleEntry{
		entry("Bonnet Brut 2006", "10:05"),
		entry("Salon 2012", "10:10"),
	}

	out := newRanker().Rank(in, now, nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestRankTimeFilter(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Schedule = []model.ScheduleEntry{
		entry("Krug Vintage 2008 Magnum", "09:00"),
		entry("Krug Vintage 2008 Magnum", "10:00"),
		{Name: "Krug Vintage 2008 Magnum", Date: "2025-04-26", Time: "09:00"},
	}

	out := newRanker().Rank(in, now, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "2025-04-26", out[0].Date)
}

func TestRankSlotConflicts(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Slots = []model.TastingSlot{{
		Start: time.Date(2025, 4, 25, 12, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 4, 25, 13, 0, 0, 0, time.UTC),
	}}
	in.Schedule = []model.ScheduleEntry{
		entry("Krug Vintage 2008 Magnum", "12:00"),
		entry("Krug Vintage 1996 Magnum", "12:30"),
		entry("Krug Vintage 1990 Magnum", "13:00"),
	}

	out := newRanker().Rank(in, now, nil)
	assert.Equal(t, []string{"Krug Vintage 1990 Magnum"}, names(out))
}

func TestRankExclusions(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Tasted = map[string]struct{}{"krug vintage 2008": {}}
	in.Base.ExcludedWines = []string{"Bollinger R.D. 2004"}
	in.Schedule = []model.ScheduleEntry{
		entry("Krug Vintage 2008 Magnum", "11:00"),
		entry("Bollinger R.D. 2004 *", "11:30"),
		entry("Salon 2002 Magnum", "12:00"),
		entry("Krug Clos du Mesnil 2006 Magnum", "12:30"),
	}

	r := newRanker()
	out := r.Rank(in, now, &model.Preferences{ExcludedWines: []string{"SALON 2002 NV"}})
	assert.Equal(t, []string{"Krug Clos du Mesnil 2006 Magnum"}, names(out))

	// The dynamic exclusion is request scoped.
	out = r.Rank(in, now, nil)
	assert.Equal(t, []string{"Salon 2002 Magnum", "Krug Clos du Mesnil 2006 Magnum"}, names(out))
	assert.Equal(t, []string{"Bollinger R.D. 2004"}, in.Base.ExcludedWines)
}

func TestRankDynamicPreferences(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Schedule = []model.ScheduleEntry{
		entry("Salon 2013 Jeroboam", "11:00"),
		entry("Krug Vintage 2008 Magnum", "12:00"),
	}

	r := newRanker()
	out := r.Rank(in, now, &model.Preferences{
		Houses: []string{"Salon"},
		Sizes:  []string{"jeroboam"},
	})
	// Krug keeps only its vintage point under the overlay.
	assert.Equal(t, []string{"Salon 2013 Jeroboam"}, names(out))
	assert.Equal(t, 2, out[0].PreferenceScore)

	out = r.Rank(in, now, nil)
	assert.Equal(t, []string{"Krug Vintage 2008 Magnum"}, names(out))
	assert.Equal(t, []string{"Krug", "Bollinger"}, in.Base.Houses)
}

func TestRankSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Schedule = []model.ScheduleEntry{
		{Name: "Krug Vintage 1996 Magnum", Date: "2025-04-xx", Time: "11:00"},
		{Name: "Krug Vintage 1995 Magnum", Date: "", Time: ""},
		{Name: "Krug Vintage 1990 Magnum", Date: "2025-04-25", Time: "25:00"},
		entry("Krug Vintage 2008 Magnum", "12:00"),
	}

	out := newRanker().Rank(in, now, nil)
	assert.Equal(t, []string{"Krug Vintage 2008 Magnum"}, names(out))
}

func TestRankCapAndInputsUntouched(t *testing.T) {
	t.Parallel()

	in := baseInput()
	for i := 0; i < 8; i++ {
		in.Schedule = append(in.Schedule, entry(fmt.Sprintf("Krug Vintage 200%d Magnum", i), fmt.Sprintf("1%d:00", i+1)))
	}
	snapshot := append([]model.ScheduleEntry(nil), in.Schedule...)

	r := newRanker()
	out := r.Rank(in, now, nil)
	require.Len(t, out, 3)
	assert.Equal(t, "11:00", out[0].Time)
	assert.Equal(t, snapshot, in.Schedule)

	r.MaxResults = 5
	assert.Len(t, r.Rank(in, now, nil), 5)
}

func TestRankEmptyInputs(t *testing.T) {
	t.Parallel()

	out := newRanker().Rank(Input{}, now, nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	in := baseInput()
	in.Catalog = nil
	in.Houses = nil
	in.Schedule = []model.ScheduleEntry{entry("Krug Vintage 2008 Magnum", "12:00")}
	out = newRanker().Rank(in, now, nil)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].House)
	assert.Nil(t, out[0].GlassPrice)
	assert.Equal(t, 2, out[0].PreferenceScore)
}

func TestSizeTag(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "magnum", SizeTag("Krug Vintage 2008 Magnum", DefaultSizeKeywords))
	assert.Equal(t, "jeroboam", SizeTag("Salon JEROBOAM 2002", DefaultSizeKeywords))
	assert.Equal(t, "", SizeTag("Magnum", DefaultSizeKeywords))
	assert.Equal(t, "", SizeTag("Krug Vintage 2008", DefaultSizeKeywords))
	assert.Equal(t, "magnum", SizeTag("X Jeroboam Magnum", DefaultSizeKeywords))
}

func TestYear(t *testing.T) {
	t.Parallel()

	y, ok := Year("Leclaire-Thiefaine Cuvée 03 Grand Cru de Cramant 2020")
	assert.True(t, ok)
	assert.Equal(t, 2020, y)

	y, ok = Year("Bollinger R.D. 2004 Magnum 2010")
	assert.True(t, ok)
	assert.Equal(t, 2004, y)

	_, ok = Year("Cuvée 12345")
	assert.False(t, ok)
	_, ok = Year("Grande Cuvée")
	assert.False(t, ok)
}
