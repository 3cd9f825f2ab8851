package filter_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/taskstore/internal/filter"
	"github.com/calvinalkan/taskstore/internal/task"
)

var now = time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

func day(d int) string {
	return task.FormatEpoch(time.Date(2024, 1, d, 9, 0, 0, 0, time.UTC))
}

// fixture returns four records in natural order; the first three are pending
// with ids 1..3, the last is completed.
func fixture(t *testing.T) []*task.Record {
	t.Helper()

	rows := []map[string]string{
		{"uuid": "0190a1b2-0000-7000-8000-000000000001", "status": "pending", "description": "buy milk", "project": "home", "tags": "errand,shop", "due": day(4), "priority": "H"},
		{"uuid": "0190a1b2-0000-7000-8000-000000000002", "status": "pending", "description": "write report", "project": "work", "tags": "office", "due": day(8), "imask": "2"},
		{"uuid": "0190a1b2-0000-7000-8000-000000000003", "status": "waiting", "description": "Buy stamps", "imask": "10"},
		{"uuid": "0190a1b2-0000-7000-8000-000000000004", "status": "completed", "description": "file taxes", "project": "home"},
	}

	out := make([]*task.Record, 0, len(rows))

	for i, row := range rows {
		row["entry"] = day(1)

		r, err := task.FromMap(row)
		if err != nil {
			t.Fatalf("fixture %d: %v", i, err)
		}

		if r.Status().InPendingSet() {
			r.SetID(i + 1)
		}

		out = append(out, r)
	}

	return out
}

func descriptions(rs []*task.Record) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Description())
	}

	return out
}

func Test_Subset_Selects_Matching_Records_In_Natural_Order_When_Filter_Compiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "empty filter matches all", args: nil, want: []string{"buy milk", "write report", "Buy stamps", "file taxes"}},
		{name: "bare word is case sensitive", args: []string{"milk"}, want: []string{"buy milk"}},
		{name: "bare word substring", args: []string{"uy"}, want: []string{"buy milk", "Buy stamps"}},
		{name: "attr colon is equality", args: []string{"project:home"}, want: []string{"buy milk", "file taxes"}},
		{name: "missing attr equals empty", args: []string{"project:"}, want: []string{"Buy stamps"}},
		{name: "not equal includes missing", args: []string{"project.not:home"}, want: []string{"write report", "Buy stamps"}},
		{name: "implicit and", args: []string{"project:home", "status:pending"}, want: []string{"buy milk"}},
		{name: "explicit or", args: []string{"project:work", "or", "status:completed"}, want: []string{"write report", "file taxes"}},
		{name: "not binds tighter than and", args: []string{"not", "project:home", "status:pending"}, want: []string{"write report"}},
		{name: "and binds tighter than or", args: []string{"project:work", "or", "project:home", "status:completed"}, want: []string{"write report", "file taxes"}},
		{name: "groups evaluated first", args: []string{"(project:work", "or", "project:home)", "status:pending"}, want: []string{"buy milk", "write report"}},
		{name: "separate parens", args: []string{"not", "(", "project:home", ")"}, want: []string{"write report", "Buy stamps"}},
		{name: "has tag", args: []string{"+shop"}, want: []string{"buy milk"}},
		{name: "lacks tag", args: []string{"-shop", "status:pending"}, want: []string{"write report"}},
		{name: "tags equality is membership", args: []string{"tags:errand"}, want: []string{"buy milk"}},
		{name: "date before", args: []string{"due.before:2024-01-06T00:00:00Z"}, want: []string{"buy milk", "Buy stamps", "file taxes"}},
		{name: "date after today", args: []string{"due.after:today"}, want: []string{"write report"}},
		{name: "date equality is same day", args: []string{"due:2024-01-08T00:00:00Z"}, want: []string{"write report"}},
		{name: "numeric not lexical", args: []string{"imask.>:3"}, want: []string{"Buy stamps"}},
		{name: "numeric below", args: []string{"imask.below:3"}, want: []string{"buy milk", "write report", "file taxes"}},
		{name: "regex match", args: []string{"description.~:^b"}, want: []string{"buy milk"}},
		{name: "regex with group", args: []string{"description.has:(milk|taxes)"}, want: []string{"buy milk", "file taxes"}},
		{name: "regex negated", args: []string{"description.hasnt:a"}, want: []string{"buy milk", "write report"}},
		{name: "lexical string compare", args: []string{"priority.>:A"}, want: []string{"buy milk"}},
		{name: "single id", args: []string{"2"}, want: []string{"write report"}},
		{name: "id list and range", args: []string{"1,3"}, want: []string{"buy milk", "Buy stamps"}},
		{name: "adjacent ids form a set", args: []string{"1", "2"}, want: []string{"buy milk", "write report"}},
		{name: "id range", args: []string{"2-3"}, want: []string{"write report", "Buy stamps"}},
		{name: "uuid prefix reaches completed", args: []string{"0190a1b2-0000-7000-8000-000000000004"}, want: []string{"file taxes"}},
		{name: "ids combine with terms", args: []string{"1-3", "project:home"}, want: []string{"buy milk"}},
		{name: "id pseudo attribute", args: []string{"id.>:1"}, want: []string{"write report", "Buy stamps"}},
		{name: "keyword case insensitive", args: []string{"project:work", "OR", "project:home"}, want: []string{"buy milk", "write report", "file taxes"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			records := fixture(t)

			f, err := filter.Compile(tc.args, now)
			if err != nil {
				t.Fatalf("compile %q: %v", tc.args, err)
			}

			got := descriptions(filter.Subset(records, f))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("subset %q (-want +got):\n%s", tc.args, diff)
			}
		})
	}
}

func Test_Compile_Returns_SyntaxError_With_Position_When_Expression_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		args  []string
		pos   int
		token string
	}{
		{name: "unbalanced open", args: []string{"(project:a", "b"}, pos: 0, token: "("},
		{name: "unbalanced close", args: []string{"a", "b)"}, pos: 1, token: ")"},
		{name: "leading operator", args: []string{"and", "a"}, pos: 0, token: "and"},
		{name: "trailing operator", args: []string{"a", "or"}, pos: 2, token: ""},
		{name: "double operator", args: []string{"a", "or", "or", "b"}, pos: 2, token: "or"},
		{name: "dangling not", args: []string{"a", "not"}, pos: 2, token: ""},
		{name: "empty group", args: []string{"(", ")"}, pos: 1, token: ")"},
		{name: "unknown operator", args: []string{"due.soon:x"}, pos: 0, token: "due.soon:x"},
		{name: "bad date", args: []string{"due.before:someday"}, pos: 0, token: "due.before:someday"},
		{name: "bad number", args: []string{"a", "imask.>:x"}, pos: 1, token: "imask.>:x"},
		{name: "bad pattern", args: []string{"description.~:[a"}, pos: 0, token: "description.~:[a"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f, err := filter.Compile(tc.args, now)
			if f != nil {
				t.Fatal("filter must be nil on error")
			}

			if !errors.Is(err, filter.ErrSyntax) {
				t.Fatalf("err=%v, want ErrSyntax", err)
			}

			var serr *filter.SyntaxError
			if !errors.As(err, &serr) {
				t.Fatalf("err=%T, want *SyntaxError", err)
			}

			if serr.Pos != tc.pos || serr.Token != tc.token {
				t.Fatalf("pos=%d token=%q, want pos=%d token=%q", serr.Pos, serr.Token, tc.pos, tc.token)
			}
		})
	}
}

func Test_Subset_Is_Deterministic_When_Evaluated_Repeatedly(t *testing.T) {
	t.Parallel()

	records := fixture(t)
	f := filter.MustCompile([]string{"(", "+shop", "or", "project:work", ")", "or", "stamps"}, now)

	first := filter.Subset(records, f)

	for range 10 {
		again := filter.Subset(records, f)
		if diff := cmp.Diff(descriptions(first), descriptions(again)); diff != "" {
			t.Fatalf("subset changed between calls (-first +again):\n%s", diff)
		}
	}
}

func Test_Nil_Filter_Matches_Everything_When_Used_As_Zero_Value(t *testing.T) {
	t.Parallel()

	var f *filter.Filter

	if !f.Empty() {
		t.Fatal("nil filter must be empty")
	}

	records := fixture(t)
	if got := filter.Subset(records, f); len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
}

func Test_OnlyIdentifiers_Reports_Id_And_UUID_Selections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args []string
		want bool
	}{
		{nil, false},
		{[]string{"1"}, true},
		{[]string{"1", "2"}, true},
		{[]string{"1-3,5"}, true},
		{[]string{"0190a1b2"}, true},
		{[]string{"0190a1b2-0000-7000-8000-000000000001", "or", "2"}, true},
		{[]string{"1", "+office"}, false},
		{[]string{"not", "1"}, false},
		{[]string{"project:home"}, false},
	}

	for _, tt := range tests {
		f := filter.MustCompile(tt.args, now)
		if got := f.OnlyIdentifiers(); got != tt.want {
			t.Errorf("OnlyIdentifiers(%q)=%v, want=%v", tt.args, got, tt.want)
		}
	}
}

func Test_And_Requires_Both_Filters_When_Combined(t *testing.T) {
	t.Parallel()

	records := fixture(t)
	ctx := filter.MustCompile([]string{"project:home", "or", "+office"}, now)
	user := filter.MustCompile([]string{"milk", "or", "report", "or", "taxes"}, now)

	got := descriptions(filter.Subset(records, filter.And(ctx, user)))
	if diff := cmp.Diff([]string{"buy milk", "write report", "file taxes"}, got); diff != "" {
		t.Fatalf("subset (-want +got):\n%s", diff)
	}

	got = descriptions(filter.Subset(records, filter.And(ctx, filter.MustCompile([]string{"milk"}, now))))
	if diff := cmp.Diff([]string{"buy milk"}, got); diff != "" {
		t.Fatalf("subset (-want +got):\n%s", diff)
	}

	if filter.And(nil, user) != user || filter.And(ctx, nil) != ctx {
		t.Fatal("an empty side should leave the other filter as is")
	}
}

func Test_WriteTerms_Accepts_Only_Plain_Equalities_And_Tags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args []string
		want []string
	}{
		{args: []string{"project:work"}, want: []string{"project:work"}},
		{args: []string{"project:work", "and", "+office"}, want: []string{"project:work", "+office"}},
		{args: []string{"due.before:today"}},
		{args: []string{"due:today", "or", "+next"}},
		{args: []string{"due:today", "-work"}},
		{args: []string{"not", "+work"}},
		{args: []string{"(project:work)"}},
		{args: []string{"project.is:work"}},
		{args: []string{"home"}},
		{args: []string{"3"}},
	}

	for _, tt := range tests {
		got, err := filter.WriteTerms(filter.MustCompile(tt.args, now))

		if tt.want == nil {
			if !errors.Is(err, filter.ErrNotWritable) {
				t.Errorf("WriteTerms(%q) err=%v, want ErrNotWritable", tt.args, err)
			}

			continue
		}

		if err != nil {
			t.Errorf("WriteTerms(%q) err=%v", tt.args, err)

			continue
		}

		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("WriteTerms(%q) (-want +got):\n%s", tt.args, diff)
		}
	}
}
