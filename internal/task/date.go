package task

import (
	"strconv"
	"strings"
	"time"
)

// absoluteLayouts are tried in order after the epoch form.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"20060102T150405Z",
}

// ParseAbsoluteDate parses the forms that do not depend on the current time:
// Unix epoch seconds, RFC3339, ISO dates with optional time (local zone) and
// the compact ISO form used by the original data files.
func ParseAbsoluteDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}

	if isDigits(s) {
		secs, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, ErrInvalidDate
		}

		return time.Unix(secs, 0), nil
	}

	for _, layout := range absoluteLayouts {
		var (
			t   time.Time
			err error
		)

		if layout == time.RFC3339 || strings.HasSuffix(layout, "Z") {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}

		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

// ParseDate parses s like [ParseAbsoluteDate] and also accepts the named
// dates now, today, tomorrow, yesterday, sod and eod, resolved against now.
func ParseDate(s string, now time.Time) (time.Time, error) {
	midnight := startOfDay(now)

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "now":
		return now, nil
	case "today", "sod":
		return midnight, nil
	case "tomorrow":
		return midnight.AddDate(0, 0, 1), nil
	case "yesterday":
		return midnight.AddDate(0, 0, -1), nil
	case "eod":
		return midnight.AddDate(0, 0, 1).Add(-time.Second), nil
	}

	return ParseAbsoluteDate(s)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func isDigits(s string) bool {
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return s != ""
}
