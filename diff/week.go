// ABOUTME: Monday-start week ranges used to tag and look up snapshots
// ABOUTME: Labels render as DD.MM–DD.MM.YYYY
package diff

import (
	"fmt"
	"time"
)

// WeekRange is a Monday-start calendar week, both ends inclusive.
type WeekRange struct {
	Start time.Time
	End   time.Time
}

// WeekOf returns the week containing t, in t's location.
func WeekOf(t time.Time) WeekRange {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return WeekRange{Start: start, End: start.AddDate(0, 0, 6)}
}

// StartISO formats the first day as YYYY-MM-DD.
func (w WeekRange) StartISO() string { return w.Start.Format("2006-01-02") }

// EndISO formats the last day as YYYY-MM-DD.
func (w WeekRange) EndISO() string { return w.End.Format("2006-01-02") }

// Label is the short display form, e.g. "04.03–10.03.2024".
func (w WeekRange) Label() string {
	return fmt.Sprintf("%s–%s", w.Start.Format("02.01"), w.End.Format("02.01.2006"))
}

// Contains reports whether t falls on one of the week's days.
func (w WeekRange) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, w.Start.Location())
	return !day.Before(w.Start) && !day.After(w.End)
}

// ParseWeek rebuilds a week from its ISO start date.
func ParseWeek(startISO string) (WeekRange, error) {
	start, err := time.ParseInLocation("2006-01-02", startISO, time.Local)
	if err != nil {
		return WeekRange{}, fmt.Errorf("invalid week start %q: %w", startISO, err)
	}
	return WeekOf(start), nil
}
