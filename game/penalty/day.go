package penalty

import "time"

// DayOf truncates t to the start of its calendar day in the local zone.
// All day arithmetic in this package goes through here so the day-boundary
// policy (including any future timezone change) lives in one place.
func DayOf(t time.Time) time.Time {
	y, m, d := t.In(time.Local).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// DayKey formats a day as YYYY-MM-DD, the form used for completion lookups.
func DayKey(t time.Time) string {
	return t.In(time.Local).Format("2006-01-02")
}

// weekdayNumber maps a day to the 1..7 scheme used by Quest.ScheduledDays
// (1 = Sunday, 7 = Saturday).
func weekdayNumber(t time.Time) int {
	return int(t.Weekday()) + 1
}
