package task

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Unit is the step of a recurrence period.
type Unit uint8

const (
	UnitDay Unit = iota + 1
	UnitWeek
	UnitMonth
	UnitYear
	UnitWeekday
	UnitInterval
)

// Period is a parsed recurrence rule. Calendar units step with calendar
// arithmetic from the anchor, so the n-th date never accumulates drift;
// intervals add a fixed duration.
type Period struct {
	unit     Unit
	n        int
	interval time.Duration
	raw      string
}

var namedPeriods = map[string]Period{
	"daily":      {unit: UnitDay, n: 1},
	"day":        {unit: UnitDay, n: 1},
	"weekdays":   {unit: UnitWeekday, n: 1},
	"weekly":     {unit: UnitWeek, n: 1},
	"week":       {unit: UnitWeek, n: 1},
	"biweekly":   {unit: UnitWeek, n: 2},
	"fortnight":  {unit: UnitWeek, n: 2},
	"monthly":    {unit: UnitMonth, n: 1},
	"month":      {unit: UnitMonth, n: 1},
	"bimonthly":  {unit: UnitMonth, n: 2},
	"quarterly":  {unit: UnitMonth, n: 3},
	"quarter":    {unit: UnitMonth, n: 3},
	"semiannual": {unit: UnitMonth, n: 6},
	"yearly":     {unit: UnitYear, n: 1},
	"year":       {unit: UnitYear, n: 1},
	"annual":     {unit: UnitYear, n: 1},
	"annually":   {unit: UnitYear, n: 1},
	"biannual":   {unit: UnitYear, n: 2},
	"biyearly":   {unit: UnitYear, n: 2},
}

var countedPeriodRe = regexp.MustCompile(`^(\d+)\s*([a-z]+)$`)

var countedUnits = map[string]func(n int) Period{
	"d":        func(n int) Period { return Period{unit: UnitDay, n: n} },
	"day":      func(n int) Period { return Period{unit: UnitDay, n: n} },
	"days":     func(n int) Period { return Period{unit: UnitDay, n: n} },
	"w":        func(n int) Period { return Period{unit: UnitWeek, n: n} },
	"wk":       func(n int) Period { return Period{unit: UnitWeek, n: n} },
	"wks":      func(n int) Period { return Period{unit: UnitWeek, n: n} },
	"week":     func(n int) Period { return Period{unit: UnitWeek, n: n} },
	"weeks":    func(n int) Period { return Period{unit: UnitWeek, n: n} },
	"m":        func(n int) Period { return Period{unit: UnitMonth, n: n} },
	"mo":       func(n int) Period { return Period{unit: UnitMonth, n: n} },
	"mos":      func(n int) Period { return Period{unit: UnitMonth, n: n} },
	"month":    func(n int) Period { return Period{unit: UnitMonth, n: n} },
	"months":   func(n int) Period { return Period{unit: UnitMonth, n: n} },
	"q":        func(n int) Period { return Period{unit: UnitMonth, n: 3 * n} },
	"qtr":      func(n int) Period { return Period{unit: UnitMonth, n: 3 * n} },
	"quarter":  func(n int) Period { return Period{unit: UnitMonth, n: 3 * n} },
	"quarters": func(n int) Period { return Period{unit: UnitMonth, n: 3 * n} },
	"y":        func(n int) Period { return Period{unit: UnitYear, n: n} },
	"yr":       func(n int) Period { return Period{unit: UnitYear, n: n} },
	"yrs":      func(n int) Period { return Period{unit: UnitYear, n: n} },
	"year":     func(n int) Period { return Period{unit: UnitYear, n: n} },
	"years":    func(n int) Period { return Period{unit: UnitYear, n: n} },
	"h":        func(n int) Period { return intervalPeriod(time.Duration(n) * time.Hour) },
	"hr":       func(n int) Period { return intervalPeriod(time.Duration(n) * time.Hour) },
	"hrs":      func(n int) Period { return intervalPeriod(time.Duration(n) * time.Hour) },
	"hour":     func(n int) Period { return intervalPeriod(time.Duration(n) * time.Hour) },
	"hours":    func(n int) Period { return intervalPeriod(time.Duration(n) * time.Hour) },
	"min":      func(n int) Period { return intervalPeriod(time.Duration(n) * time.Minute) },
	"mins":     func(n int) Period { return intervalPeriod(time.Duration(n) * time.Minute) },
	"minute":   func(n int) Period { return intervalPeriod(time.Duration(n) * time.Minute) },
	"minutes":  func(n int) Period { return intervalPeriod(time.Duration(n) * time.Minute) },
}

func intervalPeriod(d time.Duration) Period {
	return Period{unit: UnitInterval, n: 1, interval: d}
}

// ParsePeriod parses a recurrence rule: a named period (daily, weekly,
// monthly, quarterly, yearly, weekdays, ...), a counted calendar period
// ("3d", "2 weeks", "6m", "1y"), a counted interval ("12h", "30min") or a Go
// duration ("36h30m").
func ParsePeriod(s string) (Period, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return Period{}, ErrInvalidPeriod
	}

	if p, ok := namedPeriods[raw]; ok {
		p.raw = raw

		return p, nil
	}

	if m := countedPeriodRe.FindStringSubmatch(raw); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			if mk, ok := countedUnits[m[2]]; ok {
				p := mk(n)
				p.raw = raw

				return p, nil
			}
		}
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return Period{}, ErrInvalidPeriod
	}

	p := intervalPeriod(d)
	p.raw = raw

	return p, nil
}

// String returns the normalized rule text.
func (p Period) String() string {
	return p.raw
}

// Unit returns the step unit.
func (p Period) Unit() Unit {
	return p.unit
}

// IsZero reports whether p is the zero Period.
func (p Period) IsZero() bool {
	return p.unit == 0
}

// Nth returns the date of occurrence index (0-based) for a series anchored
// at anchor. Nth(anchor, 0) == anchor.
//
// Month and year steps keep the anchor's day of month and clamp to the last
// day when the target month is shorter (Jan 31 monthly → Feb 28/29, Mar 31).
func (p Period) Nth(anchor time.Time, index int) time.Time {
	if index <= 0 {
		return anchor
	}

	switch p.unit {
	case UnitDay:
		return anchor.AddDate(0, 0, p.n*index)
	case UnitWeek:
		return anchor.AddDate(0, 0, 7*p.n*index)
	case UnitMonth:
		return addMonthsClamped(anchor, p.n*index)
	case UnitYear:
		return addMonthsClamped(anchor, 12*p.n*index)
	case UnitWeekday:
		return addWeekdays(anchor, index)
	case UnitInterval:
		return anchor.Add(time.Duration(index) * p.interval)
	default:
		panic(fmt.Sprintf("period: unknown unit %d", p.unit))
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	first := time.Date(y, m+time.Month(months), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()

	return first.AddDate(0, 0, min(d, last)-1)
}

func addWeekdays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}

	return t
}
