package mutation_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/taskstore/internal/mutation"
	"github.com/calvinalkan/taskstore/internal/task"
)

func Test_ParseModifications_Splits_Tokens_By_Form(t *testing.T) {
	t.Parallel()

	got := mutation.ParseModifications([]string{
		"call", "+phone", "-later", "project:home", "priority:", "https://example.com", "-3", "due:tomorrow",
	}, testNow)

	want := mutation.Modifications{
		Attrs: []mutation.AttrMod{
			{Name: "project", Value: "home"},
			{Name: "priority", Value: ""},
			{Name: "due", Value: task.FormatEpoch(time.Date(2024, 1, 4, 0, 0, 0, 0, time.Local))},
		},
		AddTags:    []string{"phone"},
		RemoveTags: []string{"later"},
		Words:      []string{"call", "https://example.com", "-3"},
	}

	if diff := cmp.Diff(want, got, cmpopts.IgnoreUnexported(mutation.Modifications{})); diff != "" {
		t.Fatalf("modifications (-want +got):\n%s", diff)
	}

	require.Equal(t, "call https://example.com -3", got.Text())
	require.False(t, got.Empty())
	require.True(t, mutation.ParseModifications(nil, testNow).Empty())
}

func Test_Modifications_Apply_Sets_Attributes_And_Tags(t *testing.T) {
	t.Parallel()

	r := rec(t, 1, "call mom", task.AttrPriority, "H", task.AttrTags, "later,phone")

	mods := mutation.ParseModifications([]string{"project:home", "priority:", "+today", "-later"}, testNow)
	require.NoError(t, mods.Apply(r))

	require.Equal(t, "home", r.Get(task.AttrProject))
	require.False(t, r.Has(task.AttrPriority))
	require.Equal(t, []string{"phone", "today"}, r.Tags())
	require.Equal(t, "call mom", r.Description(), "words are left to the operation")
}

func Test_Operations_Edit_Description_When_Words_Given(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   mutation.Operation
		want string
	}{
		{mutation.Append(), "call mom tonight"},
		{mutation.Prepend(), "tonight call mom"},
		{mutation.Modify(), "tonight"},
	}

	for _, tt := range tests {
		r := rec(t, 1, "call mom")

		err := tt.op.Mutate(r, mutation.ParseModifications([]string{"tonight"}, testNow))
		require.NoError(t, err, tt.op.Name)
		require.Equal(t, tt.want, r.Description(), tt.op.Name)
	}
}
