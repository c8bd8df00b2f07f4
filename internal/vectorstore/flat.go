package vectorstore

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// flatSnapshotFile is the engine-native snapshot file inside the snapshot
// directory.
const flatSnapshotFile = "vectors.gob"

// Flat is an in-memory brute-force cosine index with gob snapshots.
// Exhaustive scan keeps it exact and dependency-free; it is the default
// backend and comfortably handles corpora up to the tens of thousands of
// chunks this system targets.
type Flat struct {
	mu   sync.RWMutex
	dim  int
	ids  []string
	pos  map[string]int
	vecs [][]float32
	mags []float64
}

// NewFlat creates an empty flat index.
func NewFlat() *Flat {
	return &Flat{pos: make(map[string]int)}
}

// flatSnapshot is the serialized form of the index.
type flatSnapshot struct {
	Dim     int
	IDs     []string
	Vectors [][]float32
}

// Insert adds points, replacing vectors for ids already present. The first
// inserted vector fixes the index dimension.
func (f *Flat) Insert(_ context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range points {
		if len(p.Vec) == 0 {
			return fmt.Errorf("%w: empty vector for id %s", ErrDimensionMismatch, p.ID)
		}
		if f.dim == 0 {
			f.dim = len(p.Vec)
		}
		if len(p.Vec) != f.dim {
			return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(p.Vec), f.dim)
		}
	}

	for _, p := range points {
		vec := append([]float32(nil), p.Vec...)
		if i, ok := f.pos[p.ID]; ok {
			f.vecs[i] = vec
			f.mags[i] = magnitude(vec)
			continue
		}
		f.pos[p.ID] = len(f.ids)
		f.ids = append(f.ids, p.ID)
		f.vecs = append(f.vecs, vec)
		f.mags = append(f.mags, magnitude(vec))
	}
	return nil
}

// Search returns the k nearest points by cosine similarity.
func (f *Flat) Search(_ context.Context, query []float32, k int) ([]Match, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.ids) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), f.dim)
	}

	qm := magnitude(query)
	if qm == 0 {
		return nil, nil
	}

	matches := make([]Match, len(f.ids))
	for i := range f.vecs {
		score := 0.0
		if f.mags[i] != 0 {
			score = dot(query, f.vecs[i]) / (qm * f.mags[i])
		}
		matches[i] = Match{ID: f.ids[i], Score: float32(score)}
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Delete removes ids from the index. Unknown ids are ignored.
func (f *Flat) Delete(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	keepIDs := f.ids[:0]
	keepVecs := f.vecs[:0]
	keepMags := f.mags[:0]
	pos := make(map[string]int, len(f.ids))
	for i, id := range f.ids {
		if _, gone := drop[id]; gone {
			continue
		}
		pos[id] = len(keepIDs)
		keepIDs = append(keepIDs, id)
		keepVecs = append(keepVecs, f.vecs[i])
		keepMags = append(keepMags, f.mags[i])
	}
	f.ids = keepIDs
	f.vecs = keepVecs
	f.mags = keepMags
	f.pos = pos
	return nil
}

// Clear removes every point. The dimension resets with the next insert.
func (f *Flat) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dim = 0
	f.ids = nil
	f.vecs = nil
	f.mags = nil
	f.pos = make(map[string]int)
	return nil
}

// IDs returns a copy of all ids currently in the index.
func (f *Flat) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.ids...)
}

// Len returns the number of points in the index.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Save writes the whole index to dir/vectors.gob. The snapshot is written
// to a temporary file and renamed so a crash mid-save leaves the previous
// snapshot intact.
func (f *Flat) Save(dir string) error {
	f.mu.RLock()
	snap := flatSnapshot{
		Dim:     f.dim,
		IDs:     append([]string(nil), f.ids...),
		Vectors: append([][]float32(nil), f.vecs...),
	}
	f.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, flatSnapshotFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, flatSnapshotFile)); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load replaces the in-memory state with the snapshot in dir.
func (f *Flat) Load(dir string) error {
	file, err := os.Open(filepath.Join(dir, flatSnapshotFile))
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	var snap flatSnapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if len(snap.IDs) != len(snap.Vectors) {
		return fmt.Errorf("snapshot is inconsistent: %d ids, %d vectors", len(snap.IDs), len(snap.Vectors))
	}
	for i, vec := range snap.Vectors {
		if len(vec) != snap.Dim {
			return fmt.Errorf("snapshot is inconsistent: vector %d has dim %d, want %d", i, len(vec), snap.Dim)
		}
	}

	mags := make([]float64, len(snap.Vectors))
	pos := make(map[string]int, len(snap.IDs))
	for i, vec := range snap.Vectors {
		mags[i] = magnitude(vec)
		pos[snap.IDs[i]] = i
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dim = snap.Dim
	f.ids = snap.IDs
	f.vecs = snap.Vectors
	f.mags = mags
	f.pos = pos
	return nil
}

func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func magnitude(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
