package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"path/filepath"

	"github.com/calvinalkan/taskstore/internal/fs"
)

const (
	walMagic      = "TSKWAL01"
	walFooterSize = 32
)

// WAL op kinds. A committed WAL holds the full new content of every
// collection the commit touched plus the undo group describing it, so replay
// brings files and undo log to the same state.
const (
	walOpWrite = "write"
	walOpGroup = "group"
	walOpEntry = "entry"
)

var walCRC32C = crc32.MakeTable(crc32.Castagnoli)

type walState uint8

const (
	walEmpty       walState = iota // WAL has no data.
	walUncommitted                 // WAL has data but no valid footer.
	walCommitted                   // WAL has a valid footer and checksum.
)

type walOp struct {
	Op string `json:"op"`

	// write
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`

	// group and entry
	Seq     int64  `json:"seq,omitempty"`
	Group   int64  `json:"group,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Reverts int64  `json:"reverts,omitempty"`
	Command string `json:"command,omitempty"`
	At      int64  `json:"at,omitempty"`
	UUID    string `json:"uuid,omitempty"`
	Before  string `json:"before,omitempty"`
	After   string `json:"after,omitempty"`
}

// recoverWalLocked brings files and undo log in line with the WAL. It must be
// called under the store lock.
//
//   - Empty: nothing to do.
//   - Uncommitted: the commit never reached its commit point; truncate.
//   - Committed: replay writes and journal rows (both idempotent), truncate.
func (s *Store) recoverWalLocked(ctx context.Context) error {
	state, body, err := readWalState(s.wal)
	if err != nil {
		return fmt.Errorf("read wal: %w", err)
	}

	switch state {
	case walEmpty:
		return nil
	case walUncommitted:
		s.log.Warn("discarding uncommitted wal")

		err = truncateWal(s.wal)
		if err != nil {
			return fmt.Errorf("truncate uncommitted wal: %w", err)
		}

		return nil
	case walCommitted:
		ops, err := decodeWalOps(body)
		if err != nil {
			return fmt.Errorf("decode wal: %w", err)
		}

		s.log.Info("replaying committed wal", "ops", len(ops))

		err = s.applyOps(ctx, ops)
		if err != nil {
			return fmt.Errorf("replay wal: %w", err)
		}

		err = truncateWal(s.wal)
		if err != nil {
			return fmt.Errorf("truncate wal: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("unknown wal state %d", state)
	}
}

// applyOps performs the post-commit-point work shared by Commit and replay.
func (s *Store) applyOps(ctx context.Context, ops []walOp) error {
	for _, op := range ops {
		if op.Op != walOpWrite {
			continue
		}

		err := ctx.Err()
		if err != nil {
			return fmt.Errorf("canceled: %w", context.Cause(ctx))
		}

		err = s.fs.WriteFileAtomic(filepath.Join(s.dir, op.Path), []byte(op.Content))
		if err != nil {
			return fmt.Errorf("write %s: %w", op.Path, err)
		}
	}

	err := s.journal.apply(ctx, ops)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}

	return nil
}

// writeWAL encodes ops as JSONL, appends the footer and fsyncs. The WAL is
// rewritten in place; the footer is the commit point.
func writeWAL(file fs.File, ops []walOp) error {
	var body bytes.Buffer

	enc := json.NewEncoder(&body)

	for _, op := range ops {
		err := enc.Encode(op)
		if err != nil {
			return fmt.Errorf("encode wal op: %w", err)
		}
	}

	footer := encodeFooter(body.Bytes())

	_, err := file.Seek(0, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek wal: %w", err)
	}

	_, err = file.Write(body.Bytes())
	if err != nil {
		return fmt.Errorf("write wal body: %w", err)
	}

	_, err = file.Write(footer)
	if err != nil {
		return fmt.Errorf("write wal footer: %w", err)
	}

	err = file.Truncate(int64(body.Len() + len(footer)))
	if err != nil {
		return fmt.Errorf("truncate wal to size: %w", err)
	}

	err = file.Sync()
	if err != nil {
		return fmt.Errorf("fsync wal: %w", err)
	}

	return nil
}

// encodeFooter builds the 32-byte WAL footer: magic, body length and its
// complement, CRC32C and its complement. All integers little endian.
func encodeFooter(body []byte) []byte {
	footer := make([]byte, walFooterSize)
	copy(footer[:8], walMagic)

	bodyLen := uint64(len(body))
	binary.LittleEndian.PutUint64(footer[8:16], bodyLen)
	binary.LittleEndian.PutUint64(footer[16:24], ^bodyLen)

	crc := crc32.Checksum(body, walCRC32C)
	binary.LittleEndian.PutUint32(footer[24:28], crc)
	binary.LittleEndian.PutUint32(footer[28:32], ^crc)

	return footer
}

// readWalState inspects the footer to classify the WAL. For a committed WAL
// it returns the verified body. A committed WAL whose body does not match
// its checksum is ErrCorrupt.
func readWalState(file fs.File) (walState, []byte, error) {
	info, err := file.Stat()
	if err != nil {
		return walEmpty, nil, fmt.Errorf("stat: %w", err)
	}

	size := info.Size()
	if size == 0 {
		return walEmpty, nil, nil
	}

	if size < walFooterSize {
		return walUncommitted, nil, nil
	}

	footer := make([]byte, walFooterSize)

	_, err = file.Seek(size-walFooterSize, io.SeekStart)
	if err != nil {
		return walEmpty, nil, fmt.Errorf("seek footer: %w", err)
	}

	_, err = io.ReadFull(file, footer)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return walUncommitted, nil, nil
		}

		return walEmpty, nil, fmt.Errorf("read footer: %w", err)
	}

	if string(footer[:8]) != walMagic {
		return walUncommitted, nil, nil
	}

	bodyLen := binary.LittleEndian.Uint64(footer[8:16])
	if ^bodyLen != binary.LittleEndian.Uint64(footer[16:24]) {
		return walUncommitted, nil, nil
	}

	crc := binary.LittleEndian.Uint32(footer[24:28])
	if ^crc != binary.LittleEndian.Uint32(footer[28:32]) {
		return walUncommitted, nil, nil
	}

	if bodyLen > math.MaxInt64 || int64(bodyLen) != size-walFooterSize {
		return walUncommitted, nil, nil
	}

	body := make([]byte, bodyLen)

	_, err = file.Seek(0, io.SeekStart)
	if err != nil {
		return walEmpty, nil, fmt.Errorf("seek body: %w", err)
	}

	_, err = io.ReadFull(file, body)
	if err != nil {
		return walEmpty, nil, fmt.Errorf("read body: %w", err)
	}

	checksum := crc32.Checksum(body, walCRC32C)
	if checksum != crc {
		return walCommitted, nil, fmt.Errorf("%w: wal checksum mismatch (expected %08x got %08x)", ErrCorrupt, crc, checksum)
	}

	return walCommitted, body, nil
}

// truncateWal clears the WAL and fsyncs so the next reader sees it empty.
func truncateWal(file fs.File) error {
	err := file.Truncate(0)
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	err = file.Sync()
	if err != nil {
		return fmt.Errorf("fsync: %w", err)
	}

	return nil
}

// decodeWalOps parses and validates the JSONL body.
func decodeWalOps(body []byte) ([]walOp, error) {
	var ops []walOp

	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), len(body)+1)

	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var op walOp

		err := json.Unmarshal(line, &op)
		if err != nil {
			return nil, fmt.Errorf("parse line: %w: %w", ErrWALReplay, err)
		}

		err = validateWalOp(op)
		if err != nil {
			return nil, err
		}

		ops = append(ops, op)
	}

	err := sc.Err()
	if err != nil {
		return nil, fmt.Errorf("scan: %w: %w", ErrWALReplay, err)
	}

	return ops, nil
}

// validateWalOp enforces op shape. Write ops may only target the known
// collection files, so a damaged WAL can never write outside the data dir.
func validateWalOp(op walOp) error {
	switch op.Op {
	case walOpWrite:
		if !collectionFiles[op.Path] {
			return fmt.Errorf("invalid path %q: %w", op.Path, ErrWALReplay)
		}
	case walOpGroup:
		if op.Seq <= 0 || op.Kind == "" {
			return fmt.Errorf("invalid group %d: %w", op.Seq, ErrWALReplay)
		}
	case walOpEntry:
		if op.Seq <= 0 || op.Group <= 0 || op.UUID == "" {
			return fmt.Errorf("invalid entry %d: %w", op.Seq, ErrWALReplay)
		}
	default:
		return fmt.Errorf("invalid op %q: %w", op.Op, ErrWALReplay)
	}

	return nil
}
