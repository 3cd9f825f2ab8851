package recur_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/taskstore/internal/recur"
	"github.com/calvinalkan/taskstore/internal/task"
)

func Test_ParsePolicy_Accepts_Names_And_Boolean_Spellings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want recur.Policy
	}{
		{"always", recur.PolicyAlways},
		{"yes", recur.PolicyAlways},
		{"TRUE", recur.PolicyAlways},
		{"never", recur.PolicyNever},
		{"no", recur.PolicyNever},
		{"off", recur.PolicyNever},
		{"prompt", recur.PolicyPrompt},
		{"", recur.PolicyPrompt},
	}

	for _, tt := range tests {
		got, err := recur.ParsePolicy(tt.in)
		if err != nil {
			t.Fatalf("ParsePolicy(%q): %v", tt.in, err)
		}

		if got != tt.want {
			t.Fatalf("ParsePolicy(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}

	_, err := recur.ParsePolicy("sometimes")
	if !errors.Is(err, recur.ErrInvalidPolicy) {
		t.Fatalf("err=%v, want ErrInvalidPolicy", err)
	}
}

func Test_SharedChanges_Drops_Instance_Local_Attributes(t *testing.T) {
	t.Parallel()

	changes := []task.Change{
		{Attr: task.AttrDescription, Old: "a", New: "a today"},
		{Attr: task.AttrDue, Old: "1704063600", New: "1704150000"},
		{Attr: task.AttrModified, Old: "", New: "1704150000"},
		{Attr: task.AttrProject, Old: "", New: "home"},
		{Attr: task.AttrStatus, Old: "pending", New: "completed"},
		{Attr: "estimate", Old: "", New: "2h"},
	}

	want := []task.Change{
		{Attr: task.AttrDescription, Old: "a", New: "a today"},
		{Attr: task.AttrProject, Old: "", New: "home"},
		{Attr: "estimate", Old: "", New: "2h"},
	}

	if diff := cmp.Diff(want, recur.SharedChanges(changes)); diff != "" {
		t.Fatalf("shared changes (-want +got):\n%s", diff)
	}
}

func Test_Apply_Sets_And_Removes_Attributes(t *testing.T) {
	t.Parallel()

	r, err := task.FromMap(map[string]string{
		task.AttrUUID:        templateUUID,
		task.AttrStatus:      "pending",
		task.AttrDescription: "water plants",
		task.AttrEntry:       "1704063600",
		task.AttrPriority:    "H",
	})
	if err != nil {
		t.Fatal(err)
	}

	err = recur.Apply(r, []task.Change{
		{Attr: task.AttrProject, New: "garden"},
		{Attr: task.AttrPriority, Old: "H"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if r.Get(task.AttrProject) != "garden" || r.Has(task.AttrPriority) {
		t.Fatalf("attrs=%v", r.Attrs())
	}
}
