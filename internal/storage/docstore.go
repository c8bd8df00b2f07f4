// Package storage persists the chunk id to text/metadata mapping (the
// document store half of the vector index snapshot).
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"docuchat/internal/document"
)

// ErrNotFound is returned when a requested chunk id is not stored.
var ErrNotFound = errors.New("not found")

// DocStore is a SQLite-backed mapping from chunk id to chunk text and
// metadata. It lives inside the snapshot directory next to the vector
// snapshot; together they form the complete persisted index state.
type DocStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the document store at path and runs
// migrations.
func Open(path string) (*DocStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to verify document store: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		text TEXT NOT NULL,
		metadata TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate document store: %w", err)
	}

	return &DocStore{db: db}, nil
}

// Close closes the underlying database.
func (s *DocStore) Close() error {
	return s.db.Close()
}

// InsertBatch stores chunks in a single transaction. Every chunk must have
// its id assigned. Re-inserting an id replaces the stored record.
func (s *DocStore) InsertBatch(ctx context.Context, chunks []document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO chunks (id, source, text, metadata) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("chunk has no id assigned")
		}
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", chunk.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.Source(), chunk.Text, string(meta)); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk batch: %w", err)
	}
	return nil
}

// Get returns the chunk stored under id. Returns ErrNotFound if missing.
func (s *DocStore) Get(ctx context.Context, id string) (document.Chunk, error) {
	var chunk document.Chunk
	var meta string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, text, metadata FROM chunks WHERE id = ?", id,
	).Scan(&chunk.ID, &chunk.Text, &meta)
	if err == sql.ErrNoRows {
		return document.Chunk{}, ErrNotFound
	}
	if err != nil {
		return document.Chunk{}, fmt.Errorf("failed to get chunk: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &chunk.Metadata); err != nil {
		return document.Chunk{}, fmt.Errorf("failed to unmarshal metadata for %s: %w", id, err)
	}
	return chunk, nil
}

// GetMany returns the stored chunks for ids, in the same order. Ids with
// no stored chunk are skipped.
func (s *DocStore) GetMany(ctx context.Context, ids []string) ([]document.Chunk, error) {
	chunks := make([]document.Chunk, 0, len(ids))
	for _, id := range ids {
		chunk, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Delete removes the given ids. Unknown ids are ignored.
func (s *DocStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete chunk %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// IDsBySourcePrefix returns every stored id beginning with prefix
// (typically "{source_path}_"). Underscores and percent signs in the
// prefix are escaped so they match literally.
func (s *DocStore) IDsBySourcePrefix(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeLike(prefix) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE id LIKE ? ESCAPE '\' ORDER BY id`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids by prefix: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// AllIDs returns every stored chunk id.
func (s *DocStore) AllIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM chunks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// Count returns the number of stored chunks.
func (s *DocStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Clear removes every stored chunk.
func (s *DocStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear document store: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE wildcards so a prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
