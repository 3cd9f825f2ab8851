package task_test

import (
	"errors"
	"testing"
	"time"

	"github.com/calvinalkan/taskstore/internal/task"
)

func Test_ParseDate_Resolves_Named_Dates_When_Given_Now(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "now", want: now},
		{in: "today", want: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{in: "sod", want: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{in: "Tomorrow", want: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{in: "yesterday", want: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{in: "eod", want: time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)},
		{in: "1704067200", want: time.Unix(1704067200, 0)},
		{in: "2024-01-01T10:00:00Z", want: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{in: "20240101T100000Z", want: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2024-01-01", want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)},
		{in: "2024-01-01T10:15", want: time.Date(2024, 1, 1, 10, 15, 0, 0, time.Local)},
	}

	for _, tc := range tests {
		got, err := task.ParseDate(tc.in, now)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", tc.in, err)
		}

		if !got.Equal(tc.want) {
			t.Fatalf("ParseDate(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func Test_ParseAbsoluteDate_Rejects_Relative_Names_When_No_Clock(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "today", "next week", "2024-13-01"} {
		_, err := task.ParseAbsoluteDate(in)
		if !errors.Is(err, task.ErrInvalidDate) {
			t.Fatalf("ParseAbsoluteDate(%q) err=%v, want ErrInvalidDate", in, err)
		}
	}
}
