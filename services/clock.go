package services

import (
	"strings"
	"time"
)

// Day buckets follow the timezone the programme runs in.
var jakarta = loadJakarta()

func loadJakarta() *time.Location {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}

// DayKey returns the calendar day t falls on in Asia/Jakarta, as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.In(jakarta).Format("2006-01-02")
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.In(jakarta).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, jakarta)
}

// DaysBetween counts calendar days from a to b in Asia/Jakarta. It is
// negative when b is on an earlier day than a.
func DaysBetween(a, b time.Time) int {
	hours := startOfDay(b).Sub(startOfDay(a)).Hours()
	if hours < 0 {
		return -int((-hours + 12) / 24)
	}
	return int((hours + 12) / 24)
}

// ParseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates, the latter
// taken as midnight in Asia/Jakarta.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, jakarta); err == nil {
		return t, nil
	}
	return time.Time{}, Validation(CodeInvalidDates, "dates must be YYYY-MM-DD or RFC 3339")
}
