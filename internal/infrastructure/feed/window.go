package feed

import "time"

// inWindow reports whether t falls on one of the days from through to
func inWindow(t, from, to time.Time) bool {
	day := t.UTC().Truncate(24 * time.Hour)
	return !day.Before(from.UTC().Truncate(24*time.Hour)) && !day.After(to.UTC().Truncate(24*time.Hour))
}
