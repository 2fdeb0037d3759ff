package aggregation

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// DateKey formats a date as YYYY-MM-DD
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// WeekKey formats the ISO week containing t as YYYY-Www
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// MondayOf returns the Monday starting the ISO week containing t
func MondayOf(t time.Time) time.Time {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -daysSinceMonday)
}
