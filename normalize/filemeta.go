// ABOUTME: Derives year, month, and week indexes for an imported batch
// ABOUTME: Uses the latest record date, falling back to the import time
package normalize

import (
	"time"

	"github.com/harperreed/crmpulse/models"
)

// ComputeFileMeta derives indexing metadata from the most recent
// modifiedAt/createdAt across the batch, or from now when no date resolves.
func ComputeFileMeta(deals []models.Deal, now time.Time) models.FileMeta {
	var latest time.Time
	for _, d := range deals {
		for _, raw := range []*string{d.ModifiedAt, d.CreatedAt} {
			if raw == nil {
				continue
			}
			if t, ok := ParseCanonical(*raw); ok && t.After(latest) {
				latest = t
			}
		}
	}
	if latest.IsZero() {
		latest = now
	}

	_, isoWeek := latest.ISOWeek()
	return models.FileMeta{
		Year:        latest.Year(),
		Month:       int(latest.Month()),
		WeekOfMonth: weekOfMonth(latest),
		WeekOfYear:  isoWeek,
	}
}

// weekOfMonth counts Monday-start weeks, the week holding the 1st being week 1.
func weekOfMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	offset := (int(first.Weekday()) + 6) % 7
	return (t.Day()+offset-1)/7 + 1
}
