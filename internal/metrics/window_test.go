package metrics

import (
	"testing"
	"time"
)

func TestResolveWindowHours(t *testing.T) {
	now := time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC)

	current, previous, err := ResolveWindow("", 24, now)
	if err != nil {
		t.Fatalf("ResolveWindow: %v", err)
	}
	if current.End != now || current.Start != now.Add(-24*time.Hour) {
		t.Errorf("current = %+v", current)
	}
	if previous.End != current.Start || previous.Start != now.Add(-48*time.Hour) {
		t.Errorf("previous = %+v", previous)
	}
	if current.Hours() != 24 {
		t.Errorf("hours = %d", current.Hours())
	}
}

func TestResolveWindowDefaultsToDay(t *testing.T) {
	now := time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC)
	current, _, err := ResolveWindow("", 0, now)
	if err != nil {
		t.Fatalf("ResolveWindow: %v", err)
	}
	if current.Hours() != 24 {
		t.Errorf("hours = %d, want 24", current.Hours())
	}
}

func TestResolveWindowPresets(t *testing.T) {
	now := time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		preset    string
		wantHours int
	}{
		{PresetLast24Hours, 24},
		{PresetLast7Days, 7 * 24},
		{PresetLast30Days, 30 * 24},
	}
	for _, tt := range tests {
		current, previous, err := ResolveWindow(tt.preset, 0, now)
		if err != nil {
			t.Fatalf("ResolveWindow(%s): %v", tt.preset, err)
		}
		if current.Hours() != tt.wantHours {
			t.Errorf("%s hours = %d, want %d", tt.preset, current.Hours(), tt.wantHours)
		}
		if previous.End != current.Start {
			t.Errorf("%s windows must be adjacent", tt.preset)
		}
	}
}

func TestResolveWindowThreeMonthsSnapsToCalendar(t *testing.T) {
	now := time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC)

	current, previous, err := ResolveWindow(PresetLast3Months, 0, now)
	if err != nil {
		t.Fatalf("ResolveWindow: %v", err)
	}

	wantStart := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if current.Start != wantStart {
		t.Errorf("current start = %v, want %v", current.Start, wantStart)
	}
	if current.End != now {
		t.Errorf("current end = %v, want now", current.End)
	}

	wantPrevStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if previous.Start != wantPrevStart || previous.End != wantStart {
		t.Errorf("previous = %+v", previous)
	}
}

func TestResolveWindowUnknownPreset(t *testing.T) {
	if _, _, err := ResolveWindow("last_fortnight", 0, time.Now()); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}
