package task

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Change is one attribute difference between two states of a record.
// Old is empty for an added attribute, New is empty for a removed one.
type Change struct {
	Attr string
	Old  string
	New  string
}

// Diff returns the attribute changes that turn r into other, ordered by
// attribute name. A nil r or other is treated as a record without
// attributes.
func (r *Record) Diff(other *Record) []Change {
	var before, after map[string]string
	if r != nil {
		before = r.attrs
	}

	if other != nil {
		after = other.attrs
	}

	names := slices.Collect(maps.Keys(before))
	for name := range after {
		if _, ok := before[name]; !ok {
			names = append(names, name)
		}
	}

	slices.Sort(names)

	var changes []Change

	for _, name := range names {
		if before[name] != after[name] {
			changes = append(changes, Change{Attr: name, Old: before[name], New: after[name]})
		}
	}

	return changes
}

// FormatDiff renders changes as one human readable line per attribute, in
// the form shown by confirmation prompts:
//
//	Description will be changed from 'buy milk' to 'buy milk today'.
//	Project will be set to 'home'.
//	Tags will be deleted.
//
// Dates are shown in the local zone.
func FormatDiff(changes []Change) []string {
	lines := make([]string, 0, len(changes))

	for _, c := range changes {
		label := displayName(c.Attr)
		old, cur := displayValue(c.Attr, c.Old), displayValue(c.Attr, c.New)

		switch {
		case c.Old == "":
			lines = append(lines, fmt.Sprintf("%s will be set to '%s'.", label, cur))
		case c.New == "":
			lines = append(lines, fmt.Sprintf("%s will be deleted.", label))
		default:
			lines = append(lines, fmt.Sprintf("%s will be changed from '%s' to '%s'.", label, old, cur))
		}
	}

	return lines
}

func displayName(attr string) string {
	if attr == "" {
		return attr
	}

	return strings.ToUpper(attr[:1]) + attr[1:]
}

func displayValue(attr, value string) string {
	if value == "" || KindOf(attr) != KindDate {
		return value
	}

	t, err := ParseAbsoluteDate(value)
	if err != nil {
		return value
	}

	return t.In(time.Local).Format("2006-01-02 15:04:05")
}
