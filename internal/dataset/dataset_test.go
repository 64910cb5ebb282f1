package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rareopen/internal/match"
	"rareopen/internal/model"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

const scheduleYAML = `
openings:
  - name: Krug Vintage 2008 Magnum
    date: "2025-04-25"
    time: "12:00"
    stand: B12
  - name: Salon 2002
    date: "2025-04-26"
    time: "10:30"
    stand: A3
`

const winesYAML = `
houses: [Krug, " Salon "]
wines:
  - name: Krug Vintage 2008
    glass_price: 60
  - name: Salon 2002
  - name: Krug Vintage 2008
    glass_price: 65
  - name: "  "
    glass_price: 1
`

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ScheduleFile, scheduleYAML)
	writeFile(t, dir, WinesFile, winesYAML)
	writeFile(t, dir, TastingsFile, `
tasted:
  - Krug Grande Cuvée NV
  - "*"
slots:
  - start: "2025-04-25 10:00"
    end: "2025-04-25 11:30"
  - start: "2025-04-25 xx"
    end: "2025-04-25 11:30"
  - start: "2025-04-25 12:00"
    end: "2025-04-25 12:00"
`)

	snap, err := Load(dir, time.UTC, nil)
	require.NoError(t, err)

	require.Len(t, snap.Schedule, 2)
	assert.Equal(t, model.ScheduleEntry{Name: "Salon 2002", Date: "2025-04-26", Time: "10:30", Stand: "A3"}, snap.Schedule[1])

	assert.Len(t, snap.Catalog, 2)
	require.NotNil(t, snap.Catalog["Krug Vintage 2008"].GlassPrice)
	assert.Equal(t, 65.0, *snap.Catalog["Krug Vintage 2008"].GlassPrice)
	assert.Nil(t, snap.Catalog["Salon 2002"].GlassPrice)

	assert.Equal(t, model.NewHouseSet("Krug", "Salon"), snap.Houses)
	assert.Equal(t, map[string]struct{}{"krug grande cuvée": {}}, snap.Tasted)

	require.Len(t, snap.Slots, 1)
	assert.True(t, snap.Slots[0].Start.Equal(time.Date(2025, 4, 25, 10, 0, 0, 0, time.UTC)))
	assert.True(t, snap.Slots[0].End.Equal(time.Date(2025, 4, 25, 11, 30, 0, 0, time.UTC)))
}

func TestLoadWithoutTastings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ScheduleFile, scheduleYAML)
	writeFile(t, dir, WinesFile, winesYAML)

	snap, err := Load(dir, time.UTC, nil)
	require.NoError(t, err)
	assert.Empty(t, snap.Slots)
	assert.Empty(t, snap.Tasted)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, WinesFile, winesYAML)

	_, err := Load(dir, time.UTC, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ScheduleFile, "openings: {")
	writeFile(t, dir, WinesFile, winesYAML)

	_, err := Load(dir, time.UTC, nil)
	assert.Error(t, err)
}

func TestSnapshotWithSlots(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 4, 25, 10, 0, 0, 0, time.UTC)
	base := &Snapshot{Slots: []model.TastingSlot{{Start: start, End: start.Add(time.Hour)}}}
	extra := []model.TastingSlot{{Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour)}}

	merged := base.WithSlots(extra)
	assert.Len(t, merged.Slots, 2)
	assert.Len(t, base.Slots, 1)

	in := merged.Input(model.Preferences{Houses: []string{"Krug"}})
	assert.Len(t, in.Slots, 2)
	assert.Equal(t, []string{"Krug"}, in.Base.Houses)
}

func TestLoadNormalizesTastedWithGivenTokens(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ScheduleFile, scheduleYAML)
	writeFile(t, dir, WinesFile, winesYAML)
	writeFile(t, dir, TastingsFile, `
tasted:
  - Salon Le Mesnil NV Magnum
`)

	snap, err := Load(dir, time.UTC, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"salon le mesnil": {}}, snap.Tasted)

	norm := match.NewNormalizer([]string{"magnum"})
	snap, err = Load(dir, time.UTC, norm)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"salon le mesnil nv": {}}, snap.Tasted)
	_, ok := snap.Tasted[norm.Normalize("Salon Le Mesnil NV")]
	assert.True(t, ok)
}
