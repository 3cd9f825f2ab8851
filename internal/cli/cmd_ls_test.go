package cli_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/calvinalkan/taskstore/internal/cli"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	err := os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func Test_Ls_Reports_No_Matches_When_Store_Empty(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, _, exitCode := c.Run("ls")

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want=1", exitCode)
	}

	if got, want := strings.TrimSpace(stdout), "No matches."; got != want {
		t.Fatalf("stdout=%q, want=%q", got, want)
	}
}

func Test_Ls_Filters_By_Tag_And_Attribute_When_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("add", "buy", "milk", "project:home", "+errand")
	c.MustRun("add", "write", "report", "project:work")
	c.MustRun("add", "fix", "bike", "project:home")

	stdout := c.MustRun("project:home", "-errand", "ls")
	cli.AssertContains(t, stdout, "fix bike")
	cli.AssertNotContains(t, stdout, "buy milk")
	cli.AssertNotContains(t, stdout, "write report")

	stdout = c.MustRun("+errand", "or", "project:work", "ls")
	cli.AssertContains(t, stdout, "buy milk")
	cli.AssertContains(t, stdout, "write report")
	cli.AssertContains(t, stdout, "2 tasks")
}

func Test_Info_Prints_Attributes_When_Task_Selected(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("add", "buy", "milk", "project:home")

	stdout := c.MustRun("1", "info")
	cli.AssertContains(t, stdout, "id           1")
	cli.AssertContains(t, stdout, "description  buy milk")
	cli.AssertContains(t, stdout, "project      home")
	cli.AssertContains(t, stdout, "status       pending")
	cli.AssertContains(t, stdout, "uuid ")

	stderr := c.MustFail("info")
	cli.AssertContains(t, stderr, "a filter is required")
}

func Test_Ids_And_Uuids_List_Matches_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	c.MustRun("add", "one", "+x")
	c.MustRun("add", "two", "+x")
	c.MustRun("add", "three")
	c.MustRun("add", "four", "+x")

	if got, want := c.MustRun("+x", "ids"), "1-2 4"; got != want {
		t.Fatalf("ids=%q, want=%q", got, want)
	}

	c.MustRun("-y", "3", "delete")

	uuids := strings.Fields(c.MustRun("status:pending", "uuids"))
	if len(uuids) != 3 {
		t.Fatalf("uuids=%v, want 3", uuids)
	}

	for _, u := range uuids {
		if len(u) != 36 {
			t.Fatalf("not a uuid: %q", u)
		}
	}
}

func Test_History_Lists_Groups_Newest_First_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("add", "buy", "milk")
	c.MustRun("-y", "1", "done")
	c.MustRun("undo")

	lines := strings.Split(c.MustRun("history"), "\n")
	if len(lines) != 3 {
		t.Fatalf("history lines=%d, want=3\n%s", len(lines), strings.Join(lines, "\n"))
	}

	cli.AssertContains(t, lines[0], "undo")
	cli.AssertContains(t, lines[0], "(reverts 2)")
	cli.AssertContains(t, lines[1], "done")
	cli.AssertContains(t, lines[2], "add")

	limited := strings.Split(c.MustRun("history", "-n", "1"), "\n")
	if len(limited) != 1 {
		t.Fatalf("limited history=%v, want one line", limited)
	}
}

// Tests for print-config command.

func Test_Print_Config_Defaults_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "data_dir="+filepath.Join(c.Dir, ".task"))
	cli.AssertContains(t, stdout, "recurrence.confirmation=prompt")
	cli.AssertContains(t, stdout, "(defaults only)")
}

func Test_Print_Config_From_Config_File_With_Comments_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".taskrc.json"), `{
		// This is a comment
		"data_dir": "my-tasks",
		"recurrence": {"confirmation": "always"},
	}`)

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "data_dir="+filepath.Join(c.Dir, "my-tasks"))
	cli.AssertContains(t, stdout, "recurrence.confirmation=always")
	cli.AssertContains(t, stdout, "project_config="+filepath.Join(c.Dir, ".taskrc.json"))
}

func Test_Print_Config_Explicit_Config_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, "custom.toml"), "data_dir = \"custom-dir\"\n")

	stdout := c.MustRun("--config=custom.toml", "print-config")
	cli.AssertContains(t, stdout, "data_dir="+filepath.Join(c.Dir, "custom-dir"))
}

func Test_Print_Config_Env_And_Flag_Override_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Env["TASKDATA"] = filepath.Join(c.Dir, "env-data")

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "data_dir="+filepath.Join(c.Dir, "env-data"))
	cli.AssertContains(t, stdout, "env=TASKDATA")

	stdout = c.MustRun("--data-dir", "flag-data", "-y", "print-config")
	cli.AssertContains(t, stdout, "data_dir="+filepath.Join(c.Dir, "flag-data"))
	cli.AssertContains(t, stdout, "confirmation=false")
}

func Test_Config_Explicit_Config_Not_Found_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("-c", "nonexistent.json", "print-config")

	cli.AssertContains(t, stderr, "config file not found")
}

func Test_Config_Invalid_JSON_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".taskrc.json"), `{invalid}`)

	stderr := c.MustFail("print-config")
	cli.AssertContains(t, stderr, "invalid config")
}

func Test_Data_Dir_Flag_Moves_Store_When_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("--data-dir", "elsewhere", "add", "buy", "milk")

	_, err := os.Stat(filepath.Join(c.Dir, "elsewhere", "pending.data"))
	if err != nil {
		t.Fatalf("pending.data not in --data-dir: %v", err)
	}

	if got := c.ReadData("pending.data"); got != "" {
		t.Fatalf("default data dir should be untouched, got %q", got)
	}
}

func Test_Ls_Shows_Due_Instances_When_Template_Not_Yet_Expanded(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	err := os.MkdirAll(c.DataDir(), 0o750)
	if err != nil {
		t.Fatal(err)
	}

	due := time.Now().AddDate(0, 0, -1).Unix()
	writeFile(t, filepath.Join(c.DataDir(), "pending.data"), fmt.Sprintf(
		`{"description":"water plants","due":"%d","entry":"%d","recur":"weekly","status":"recurring","uuid":"0190a1b2-0000-7000-8000-000000000001"}`+"\n",
		due, due))

	stdout := c.MustRun("ls")
	cli.AssertContains(t, stdout, "water plants")
	cli.AssertContains(t, stdout, "2 tasks")

	// Listing again generates nothing new.
	if got, want := c.MustRun("status:pending", "ids"), "2-3"; got != want {
		t.Fatalf("ids=%q, want=%q", got, want)
	}

	cli.AssertContains(t, c.MustRun("history"), "recur")
}
