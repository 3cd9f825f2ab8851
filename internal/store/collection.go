package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calvinalkan/taskstore/internal/fs"
	"github.com/calvinalkan/taskstore/internal/task"
)

// Collection files, relative to the data directory.
const (
	pendingFile   = "pending.data"
	completedFile = "completed.data"
	backlogFile   = "backlog.data"
)

// collectionFiles lists every file a WAL write op may target.
var collectionFiles = map[string]bool{
	pendingFile:   true,
	completedFile: true,
	backlogFile:   true,
}

// fileFor returns the collection a record with status st belongs to.
func fileFor(st task.Status) string {
	if st.InPendingSet() {
		return pendingFile
	}

	return completedFile
}

// readCollection decodes one JSONL collection. A missing file is an empty
// collection. Every other irregularity is ErrCorrupt: the store never drops a
// record it cannot read.
func readCollection(fsys fs.FS, path string) ([]*task.Record, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	name := filepath.Base(path)

	if data[len(data)-1] != '\n' {
		return nil, fmt.Errorf("%w: %s: partially written (no trailing newline)", ErrCorrupt, name)
	}

	lines := bytes.Split(data[:len(data)-1], []byte("\n"))
	records := make([]*task.Record, 0, len(lines))

	for i, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			return nil, fmt.Errorf("%w: %s:%d: empty line", ErrCorrupt, name, i+1)
		}

		var r task.Record

		err := json.Unmarshal(line, &r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %w", ErrCorrupt, name, i+1, err)
		}

		records = append(records, &r)
	}

	return records, nil
}

// encodeCollection renders records as JSONL, one record per line.
func encodeCollection(records []*task.Record) ([]byte, error) {
	var buf bytes.Buffer

	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", r.UUID(), err)
		}

		buf.Write(line)
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}
