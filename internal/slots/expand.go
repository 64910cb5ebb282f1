package slots

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "rareopen/internal/log"
	"rareopen/internal/model"
)

const defaultMaxPerEvent = 1000

// Window bounds recurrence expansion.
type Window struct {
	Start time.Time
	End   time.Time

	// MaxPerEvent caps occurrences of a single recurring event.
	// Zero uses defaultMaxPerEvent.
	MaxPerEvent int
}

// Expand turns busy events into concrete [Start, End) slots overlapping w.
// Recurring events are expanded with RRULE/EXDATE and RECURRENCE-ID
// overrides replace the instance they point at. Zero-length slots are dropped.
// The result is sorted by start time.
func Expand(events []BusyEvent, w Window) ([]model.TastingSlot, error) {
	if w.End.Before(w.Start) {
		return nil, errors.New("expand: window end is before start")
	}
	if w.MaxPerEvent <= 0 {
		w.MaxPerEvent = defaultMaxPerEvent
	}

	base := make(map[string][]BusyEvent)
	overrides := make(map[string][]BusyEvent)
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		base[ev.UID] = append(base[ev.UID], ev)
	}

	out := make([]model.TastingSlot, 0)
	for uid, evs := range base {
		for _, ev := range evs {
			if ev.RawRRule == "" {
				out = appendSlot(out, applyOverride(ev, overrides[uid], ev.Start), w)
				continue
			}
			slots, capped := expandRecurring(ev, overrides[uid], w)
			if capped {
				appLog.Warn("busy event hit occurrence cap", "uid", uid, "cap", w.MaxPerEvent)
			}
			out = append(out, slots...)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func expandRecurring(ev BusyEvent, overrides []BusyEvent, w Window) ([]model.TastingSlot, bool) {
	out := make([]model.TastingSlot, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Start one event length early so an instance already running at
	// w.Start is still counted.
	dur := ev.End.Sub(ev.Start)
	from := w.Start.Add(-dur).In(ev.Start.Location())
	to := w.End.In(ev.Start.Location())

	starts := set.Between(from, to, true)
	capped := false
	if len(starts) > w.MaxPerEvent {
		starts = starts[:w.MaxPerEvent]
		capped = true
	}

	for _, s := range starts {
		inst := ev
		inst.Start = s
		inst.End = s.Add(dur)
		out = appendSlot(out, applyOverride(inst, overrides, s), w)
	}
	return out, capped
}

// applyOverride returns the override whose RECURRENCE-ID equals start, or ev.
func applyOverride(ev BusyEvent, overrides []BusyEvent, start time.Time) BusyEvent {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov
		}
	}
	return ev
}

func appendSlot(out []model.TastingSlot, ev BusyEvent, w Window) []model.TastingSlot {
	if !ev.End.After(ev.Start) {
		return out
	}
	if !ev.End.After(w.Start) || !ev.Start.Before(w.End) {
		return out
	}
	return append(out, model.TastingSlot{Start: ev.Start, End: ev.End})
}
