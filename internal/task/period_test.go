package task_test

import (
	"errors"
	"testing"
	"time"

	"github.com/calvinalkan/taskstore/internal/task"
)

func Test_ParsePeriod_Accepts_Named_And_Counted_Forms_When_Valid(t *testing.T) {
	t.Parallel()

	anchor := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		in     string
		unit   task.Unit
		second time.Time
	}{
		{in: "daily", unit: task.UnitDay, second: anchor.AddDate(0, 0, 1)},
		{in: "weekly", unit: task.UnitWeek, second: anchor.AddDate(0, 0, 7)},
		{in: "biweekly", unit: task.UnitWeek, second: anchor.AddDate(0, 0, 14)},
		{in: "monthly", unit: task.UnitMonth, second: anchor.AddDate(0, 1, 0)},
		{in: "quarterly", unit: task.UnitMonth, second: anchor.AddDate(0, 3, 0)},
		{in: "yearly", unit: task.UnitYear, second: anchor.AddDate(1, 0, 0)},
		{in: "3d", unit: task.UnitDay, second: anchor.AddDate(0, 0, 3)},
		{in: "2 weeks", unit: task.UnitWeek, second: anchor.AddDate(0, 0, 14)},
		{in: "6m", unit: task.UnitMonth, second: anchor.AddDate(0, 6, 0)},
		{in: "2q", unit: task.UnitMonth, second: anchor.AddDate(0, 6, 0)},
		{in: "12h", unit: task.UnitInterval, second: anchor.Add(12 * time.Hour)},
		{in: "30min", unit: task.UnitInterval, second: anchor.Add(30 * time.Minute)},
		{in: "36h30m", unit: task.UnitInterval, second: anchor.Add(36*time.Hour + 30*time.Minute)},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			p, err := task.ParsePeriod(tc.in)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}

			if p.Unit() != tc.unit {
				t.Fatalf("unit=%d, want %d", p.Unit(), tc.unit)
			}

			if got := p.Nth(anchor, 0); !got.Equal(anchor) {
				t.Fatalf("Nth(0)=%v, want anchor", got)
			}

			if got := p.Nth(anchor, 1); !got.Equal(tc.second) {
				t.Fatalf("Nth(1)=%v, want %v", got, tc.second)
			}
		})
	}
}

func Test_ParsePeriod_Fails_When_Input_Is_Not_A_Period(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "sometimes", "0d", "-3d", "3 fortnights", "-1h"} {
		_, err := task.ParsePeriod(in)
		if !errors.Is(err, task.ErrInvalidPeriod) {
			t.Fatalf("ParsePeriod(%q) err=%v, want ErrInvalidPeriod", in, err)
		}
	}
}

func Test_Nth_Clamps_To_Month_End_When_Anchor_Day_Missing(t *testing.T) {
	t.Parallel()

	p, err := task.ParsePeriod("monthly")
	if err != nil {
		t.Fatal(err)
	}

	anchor := time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC)

	want := []time.Time{
		anchor,
		time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC),
	}

	// Contract: each date derives from the anchor, so a clamped month does not
	// drag later months to the 29th.
	for i, w := range want {
		if got := p.Nth(anchor, i); !got.Equal(w) {
			t.Fatalf("Nth(%d)=%v, want %v", i, got, w)
		}
	}
}

func Test_Nth_Skips_Weekend_When_Period_Is_Weekdays(t *testing.T) {
	t.Parallel()

	p, err := task.ParsePeriod("weekdays")
	if err != nil {
		t.Fatal(err)
	}

	friday := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

	if got := p.Nth(friday, 1); got.Weekday() != time.Monday || got.Day() != 8 {
		t.Fatalf("Nth(1)=%v, want Monday 8th", got)
	}

	if got := p.Nth(friday, 5); got.Day() != 12 {
		t.Fatalf("Nth(5)=%v, want Friday 12th", got)
	}
}
