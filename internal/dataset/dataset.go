// Package dataset loads the typed records produced by the schedule,
// price-list and tasting-log parsers into one read-only Snapshot.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "rareopen/internal/log"
	"rareopen/internal/match"
	"rareopen/internal/model"
	"rareopen/internal/rank"
)

const (
	ScheduleFile = "schedule.yaml"
	WinesFile    = "wines.yaml"
	TastingsFile = "tastings.yaml"

	slotLayout = "2006-01-02 15:04"
)

// Snapshot is one consistent view of all ranking inputs. It is never
// mutated after Load; a reload produces a new Snapshot.
type Snapshot struct {
	Schedule []model.ScheduleEntry
	Catalog  model.Catalog
	Houses   model.HouseSet
	Slots    []model.TastingSlot
	Tasted   map[string]struct{}

	LoadedAt time.Time
}

// Input pairs the snapshot with base preferences for the ranker.
func (s *Snapshot) Input(base model.Preferences) rank.Input {
	return rank.Input{
		Schedule: s.Schedule,
		Catalog:  s.Catalog,
		Houses:   s.Houses,
		Slots:    s.Slots,
		Tasted:   s.Tasted,
		Base:     base,
	}
}

// WithSlots returns a shallow copy with extra busy slots appended.
func (s *Snapshot) WithSlots(extra []model.TastingSlot) *Snapshot {
	out := *s
	out.Slots = make([]model.TastingSlot, 0, len(s.Slots)+len(extra))
	out.Slots = append(out.Slots, s.Slots...)
	out.Slots = append(out.Slots, extra...)
	return &out
}

type scheduleFile struct {
	Openings []model.ScheduleEntry `yaml:"openings"`
}

type winesFile struct {
	Houses []string             `yaml:"houses"`
	Wines  []model.CatalogEntry `yaml:"wines"`
}

type slotRecord struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type tastingsFile struct {
	Tasted []string     `yaml:"tasted"`
	Slots  []slotRecord `yaml:"slots"`
}

// Load reads schedule.yaml and wines.yaml (both required) and tastings.yaml
// (optional) from dir. Slot times are read in loc. Tasted names are
// normalized with norm, which must be the ranker's normalizer so tasted
// and scheduled names compare equal; nil uses the default token list.
func Load(dir string, loc *time.Location, norm *match.Normalizer) (*Snapshot, error) {
	if loc == nil {
		loc = time.Local
	}
	if norm == nil {
		norm = match.NewNormalizer(nil)
	}

	var sf scheduleFile
	if err := readYAML(filepath.Join(dir, ScheduleFile), &sf); err != nil {
		return nil, err
	}

	var wf winesFile
	if err := readYAML(filepath.Join(dir, WinesFile), &wf); err != nil {
		return nil, err
	}

	var tf tastingsFile
	if err := readYAML(filepath.Join(dir, TastingsFile), &tf); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		appLog.Info("no tastings file; assuming nothing tasted and no busy slots", "dir", dir)
	}

	snap := &Snapshot{
		Schedule: sf.Openings,
		Catalog:  buildCatalog(wf.Wines),
		Houses:   model.NewHouseSet(trimAll(wf.Houses)...),
		Slots:    parseSlots(tf.Slots, loc),
		Tasted:   make(map[string]struct{}, len(tf.Tasted)),
		LoadedAt: time.Now(),
	}
	for _, name := range tf.Tasted {
		if n := norm.Normalize(name); n != "" {
			snap.Tasted[n] = struct{}{}
		}
	}
	if len(snap.Houses) == 0 {
		appLog.Warn("wine list has no houses; prices cannot be resolved", "file", WinesFile)
	}

	appLog.Info("dataset loaded",
		"dir", dir,
		"openings", len(snap.Schedule),
		"wines", len(snap.Catalog),
		"houses", len(snap.Houses),
		"slots", len(snap.Slots),
		"tasted", len(snap.Tasted),
	)
	return snap, nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func buildCatalog(wines []model.CatalogEntry) model.Catalog {
	cat := make(model.Catalog, len(wines))
	for _, w := range wines {
		w.FullName = strings.TrimSpace(w.FullName)
		if w.FullName == "" {
			appLog.Warn("skipping wine list entry without a name")
			continue
		}
		if _, dup := cat[w.FullName]; dup {
			appLog.Warn("duplicate wine list entry; keeping the later one", "name", w.FullName)
		}
		cat[w.FullName] = w
	}
	return cat
}

func parseSlots(records []slotRecord, loc *time.Location) []model.TastingSlot {
	slots := make([]model.TastingSlot, 0, len(records))
	for _, r := range records {
		start, err := time.ParseInLocation(slotLayout, strings.TrimSpace(r.Start), loc)
		if err != nil {
			appLog.Warn("skipping tasting slot with invalid start", "start", r.Start, "err", err)
			continue
		}
		end, err := time.ParseInLocation(slotLayout, strings.TrimSpace(r.End), loc)
		if err != nil {
			appLog.Warn("skipping tasting slot with invalid end", "end", r.End, "err", err)
			continue
		}
		if !end.After(start) {
			appLog.Warn("skipping empty tasting slot", "start", r.Start, "end", r.End)
			continue
		}
		slots = append(slots, model.TastingSlot{Start: start, End: end})
	}
	return slots
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
