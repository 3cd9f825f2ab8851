package store_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/taskstore/internal/store"
	"github.com/calvinalkan/taskstore/internal/task"
)

func attrsOf(t *testing.T, s *store.Store) map[string]map[string]string {
	t.Helper()

	out := map[string]map[string]string{}
	for _, r := range load(t, s).All() {
		out[r.UUID()] = r.Attrs()
	}

	return out
}

func Test_Undo_Returns_ErrNothingToUndo_When_Log_Empty(t *testing.T) {
	t.Parallel()

	s := openStore(t, t.TempDir(), store.Options{})

	_, err := s.Undo(t.Context())
	if !errors.Is(err, store.ErrNothingToUndo) {
		t.Fatalf("err=%v, want ErrNothingToUndo", err)
	}

	_, err = s.Redo(t.Context())
	if !errors.Is(err, store.ErrNothingToRedo) {
		t.Fatalf("err=%v, want ErrNothingToRedo", err)
	}
}

// Contract: undo after a single mutation restores every affected record.
func Test_Undo_Restores_Prior_State_When_Group_Spans_Records(t *testing.T) {
	t.Parallel()

	s := openStore(t, t.TempDir(), store.Options{})
	commitAdds(t, s, rec(t, 1, "one"), rec(t, 2, "two"), rec(t, 3, "three"))

	before := attrsOf(t, s)

	tx, err := s.Begin(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{1, 2, 3} {
		cur, _ := tx.Snapshot().Get(testUUID(n))
		r := cur.Clone()
		_ = r.Set(task.AttrDescription, r.Description()+" today")
		_ = r.AddTag("later")

		if n == 2 {
			_ = r.SetStatus(task.StatusCompleted)
		}

		if err := tx.Modify(r); err != nil {
			t.Fatal(err)
		}
	}

	err = tx.Commit(t.Context(), store.Meta{Command: "append"})
	if err != nil {
		t.Fatal(err)
	}

	group, err := s.Undo(t.Context())
	if err != nil {
		t.Fatalf("undo: %v", err)
	}

	if group.Command != "append" || len(group.Entries) != 3 {
		t.Fatalf("undone group=%+v", group)
	}

	if diff := cmp.Diff(before, attrsOf(t, s)); diff != "" {
		t.Fatalf("state after undo (-want +got):\n%s", diff)
	}

	// The restored completed record is back in the pending set.
	if got := descriptions(load(t, s).Pending()); len(got) != 3 {
		t.Fatalf("pending=%v, want 3 records", got)
	}
}

func Test_Undo_Removes_Record_When_Group_Created_It(t *testing.T) {
	t.Parallel()

	s := openStore(t, t.TempDir(), store.Options{})
	commitAdds(t, s, rec(t, 1, "one"))
	commitAdds(t, s, rec(t, 2, "two"))

	_, err := s.Undo(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	_, err = load(t, s).Get(testUUID(2))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get undone creation err=%v, want ErrNotFound", err)
	}
}

func Test_Undo_Walks_Backward_When_Repeated(t *testing.T) {
	t.Parallel()

	s := openStore(t, t.TempDir(), store.Options{})
	commitAdds(t, s, rec(t, 1, "v1"))

	for _, d := range []string{"v2", "v3"} {
		commitModify(t, s, testUUID(1), func(r *task.Record) error {
			return r.Set(task.AttrDescription, d)
		})
	}

	for _, want := range []string{"v2", "v1"} {
		_, err := s.Undo(t.Context())
		if err != nil {
			t.Fatal(err)
		}

		r, err := load(t, s).Get(testUUID(1))
		if err != nil {
			t.Fatal(err)
		}

		if r.Description() != want {
			t.Fatalf("description=%q, want %q", r.Description(), want)
		}
	}

	_, err := s.Undo(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	if snap := load(t, s); snap.Len() != 0 {
		t.Fatalf("len=%d after undoing the creation", snap.Len())
	}

	_, err = s.Undo(t.Context())
	if !errors.Is(err, store.ErrNothingToUndo) {
		t.Fatalf("err=%v, want ErrNothingToUndo", err)
	}

	// Contract: every reversal is itself a group.
	history, err := s.History(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	kinds := make([]store.GroupKind, 0, len(history))
	for _, g := range history {
		kinds = append(kinds, g.Kind)
	}

	want := []store.GroupKind{
		store.GroupUndo, store.GroupUndo, store.GroupUndo,
		store.GroupCommand, store.GroupCommand, store.GroupCommand,
	}

	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("history kinds newest first (-want +got):\n%s", diff)
	}
}

func Test_Redo_Reapplies_Undone_Group_When_No_Command_Since(t *testing.T) {
	t.Parallel()

	s := openStore(t, t.TempDir(), store.Options{})
	commitAdds(t, s, rec(t, 1, "buy milk"))
	commitModify(t, s, testUUID(1), func(r *task.Record) error {
		return r.Set(task.AttrDescription, "buy milk today")
	})

	after := attrsOf(t, s)

	_, err := s.Undo(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Redo(t.Context())
	if err != nil {
		t.Fatalf("redo: %v", err)
	}

	if diff := cmp.Diff(after, attrsOf(t, s)); diff != "" {
		t.Fatalf("state after redo (-want +got):\n%s", diff)
	}

	// Undoing the redo is an ordinary undo.
	_, err = s.Undo(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	r, _ := load(t, s).Get(testUUID(1))
	if r.Description() != "buy milk" {
		t.Fatalf("description=%q after undoing redo", r.Description())
	}
}

func Test_Redo_Stack_Clears_When_New_Command_Commits(t *testing.T) {
	t.Parallel()

	s := openStore(t, t.TempDir(), store.Options{})
	commitAdds(t, s, rec(t, 1, "one"))
	commitAdds(t, s, rec(t, 2, "two"))

	_, err := s.Undo(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	commitAdds(t, s, rec(t, 3, "three"))

	_, err = s.Redo(t.Context())
	if !errors.Is(err, store.ErrNothingToRedo) {
		t.Fatalf("err=%v, want ErrNothingToRedo", err)
	}
}
