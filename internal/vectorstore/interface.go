// Package vectorstore provides the similarity-search engine behind the
// vector index: a local snapshot-persistent flat index by default, with a
// Qdrant-backed alternative for server deployments.
package vectorstore

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's dimension does not match
// the index's established dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Point is a vector with its chunk id.
type Point struct {
	ID  string
	Vec []float32
}

// Match is a single similarity-search result. Score is cosine similarity;
// higher means more similar.
type Match struct {
	ID    string
	Score float32
}

// Index is the nearest-neighbor engine contract: additive insert, id-based
// delete, top-k query, and whole-structure save/load against a directory.
// Backends that are durable on their own (Qdrant) implement Save and Load
// as no-ops.
type Index interface {
	// Insert adds points to the index. Inserting an existing id replaces
	// its vector.
	Insert(ctx context.Context, points []Point) error

	// Search returns up to k matches ordered by descending similarity.
	Search(ctx context.Context, query []float32, k int) ([]Match, error)

	// Delete removes the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Clear removes every point.
	Clear(ctx context.Context) error

	// Save persists the whole index into dir as a complete, independently
	// loadable snapshot.
	Save(dir string) error

	// Load replaces the in-memory state with the snapshot in dir. Returns
	// an error wrapping os.ErrNotExist when no snapshot is present.
	Load(dir string) error
}
