// Package ledger tracks which source documents have already been ingested,
// making re-ingestion idempotent.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Ledger is an append-only record of ingested source identifiers, one per
// line. Lookups scan the whole file; this is acceptable for the expected
// identifier volume and keeps the on-disk format trivially inspectable.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// Open returns a ledger backed by the file at path. The file is created
// lazily on first Record; a missing file reads as an empty ledger.
func Open(path string) *Ledger {
	return &Ledger{path: path}
}

// IsRecorded reports whether id has been recorded.
func (l *Ledger) IsRecorded(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if scanner.Text() == id {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to scan ledger: %w", err)
	}
	return false, nil
}

// Record appends id to the ledger. The entry is written with a single
// O_APPEND write so a crash mid-record cannot corrupt earlier lines.
// Entries are never retracted: deleting a source's chunks from the index
// does not remove its ledger entry, so a deleted-then-re-added source is
// still treated as already processed.
func (l *Ledger) Record(id string) error {
	if strings.ContainsRune(id, '\n') {
		return fmt.Errorf("ledger id must not contain newlines: %q", id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := f.WriteString(id + "\n"); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	return nil
}
