package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tailscale/hujson"

	"github.com/calvinalkan/taskstore/internal/fs"
)

// edit sets or, with a nil value, removes the key at keys.
type edit struct {
	keys  []string
	value any
}

// DefineContext saves def as contexts.<name> in the file at path, creating
// the file when missing. An empty Write is left out.
func DefineContext(path, name string, def Context) error {
	value := map[string]any{"read": def.Read}
	if def.Write != "" {
		value["write"] = def.Write
	}

	return update(path, edit{keys: []string{"contexts", name}, value: value})
}

// DeleteContext removes contexts.<name> from the file at path. When active
// is true the context key is removed as well.
func DeleteContext(path, name string, active bool) error {
	edits := []edit{{keys: []string{"contexts", name}}}
	if active {
		edits = append(edits, edit{keys: []string{"context"}})
	}

	return update(path, edits...)
}

// SetContext saves name as the active context. An empty name removes the
// key.
func SetContext(path, name string) error {
	e := edit{keys: []string{"context"}}
	if name != "" {
		e.value = name
	}

	return update(path, e)
}

// update applies edits to the config file at path and replaces it
// atomically. JSON files keep their comments and formatting.
func update(path string, edits ...edit) error {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
	}

	if err != nil && onlyRemovals(edits) {
		return nil
	}

	var out []byte

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		out, err = editTOML(data, edits)
	} else {
		out, err = editJSON(data, edits)
	}

	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	fsys := fs.NewReal()

	err = fsys.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	err = fsys.WriteFileAtomic(path, out)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

func onlyRemovals(edits []edit) bool {
	for _, e := range edits {
		if e.value != nil {
			return false
		}
	}

	return true
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func pointer(keys []string) string {
	var b strings.Builder

	for _, k := range keys {
		b.WriteString("/" + pointerEscaper.Replace(k))
	}

	return b.String()
}

type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// editJSON applies edits as RFC 6902 patches, one edit at a time so each
// sees the members the previous one created.
func editJSON(data []byte, edits []edit) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}

	v, err := hujson.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	for _, e := range edits {
		var patch []patchOp

		if e.value == nil {
			if v.Find(pointer(e.keys)) == nil {
				continue
			}

			patch = append(patch, patchOp{Op: "remove", Path: pointer(e.keys)})
		} else {
			keys, value := e.keys, e.value

			// A missing parent is added with the value nested inside it.
			for i := 1; i < len(e.keys); i++ {
				if v.Find(pointer(e.keys[:i])) != nil {
					continue
				}

				for j := len(e.keys) - 1; j >= i; j-- {
					value = map[string]any{e.keys[j]: value}
				}

				keys = e.keys[:i]

				break
			}

			patch = append(patch, patchOp{Op: "add", Path: pointer(keys), Value: value})
		}

		b, err := json.Marshal(patch)
		if err != nil {
			return nil, err
		}

		err = v.Patch(b)
		if err != nil {
			return nil, fmt.Errorf("edit %s: %w", strings.Join(e.keys, "."), err)
		}
	}

	v.Format()

	return v.Pack(), nil
}

// editTOML round-trips the document through a map. Comments are not kept.
func editTOML(data []byte, edits []edit) ([]byte, error) {
	doc := map[string]any{}

	err := toml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("invalid TOML: %w", err)
	}

	for _, e := range edits {
		table := doc

		for _, k := range e.keys[:len(e.keys)-1] {
			child, ok := table[k].(map[string]any)
			if !ok {
				if e.value == nil {
					table = nil

					break
				}

				child = map[string]any{}
				table[k] = child
			}

			table = child
		}

		last := e.keys[len(e.keys)-1]

		switch {
		case table == nil:
		case e.value == nil:
			delete(table, last)
		default:
			table[last] = e.value
		}
	}

	return toml.Marshal(doc)
}
