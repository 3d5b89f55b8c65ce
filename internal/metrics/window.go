// Package metrics computes windowed trend reports over classified content.
package metrics

import (
	"fmt"
	"time"
)

// Named window presets resolved to calendar-aware boundaries.
const (
	PresetLast24Hours = "last_24_hours"
	PresetLast7Days   = "last_7_days"
	PresetLast30Days  = "last_30_days"
	PresetLast3Months = "last_3_months"
)

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Hours returns the window length in whole hours.
func (w Window) Hours() int {
	return int(w.End.Sub(w.Start).Hours())
}

// ResolveWindow turns a named preset or an hour count into the current window
// and the immediately preceding one. Presets other than last_3_months are
// fixed durations; the 3-month preset snaps to calendar month boundaries so
// "previous" means the preceding 3 calendar months.
func ResolveWindow(preset string, hours int, now time.Time) (current, previous Window, err error) {
	now = now.UTC()

	switch preset {
	case "":
		if hours <= 0 {
			hours = 24
		}
		d := time.Duration(hours) * time.Hour
		current = Window{Start: now.Add(-d), End: now}
		previous = Window{Start: now.Add(-2 * d), End: now.Add(-d)}
		return current, previous, nil
	case PresetLast24Hours:
		return ResolveWindow("", 24, now)
	case PresetLast7Days:
		return ResolveWindow("", 7*24, now)
	case PresetLast30Days:
		return ResolveWindow("", 30*24, now)
	case PresetLast3Months:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		current = Window{Start: monthStart.AddDate(0, -2, 0), End: now}
		previous = Window{Start: monthStart.AddDate(0, -5, 0), End: monthStart.AddDate(0, -2, 0)}
		return current, previous, nil
	default:
		return Window{}, Window{}, fmt.Errorf("unknown window preset: %s", preset)
	}
}
