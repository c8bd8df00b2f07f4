// Package vectorindex owns the mapping from chunk id to embedding, text
// and metadata. It fronts an embedding client, a similarity-search
// backend and a document store, and persists the whole index as a
// snapshot after every mutating batch.
package vectorindex

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks docuchat/internal/vectorindex Embedder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"docuchat/internal/contextutil"
	"docuchat/internal/document"
	"docuchat/internal/storage"
	"docuchat/internal/vectorstore"
)

// ErrCountMismatch is returned when a caller-supplied id list does not
// match the chunk list in length. The insert fails before any mutation.
var ErrCountMismatch = errors.New("id count does not match chunk count")

// placeholderSource marks the seed record a fresh index is created with
// so the backend is non-empty and queryable. It is filtered from search
// results.
const placeholderSource = "__init__"

const docstoreFile = "docstore.db"

// Embedder turns texts into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures an Engine.
type Options struct {
	Embedder    Embedder
	Index       vectorstore.Index
	SnapshotDir string
	// BatchSize bounds embedding-request size per insert round.
	BatchSize int
	// TopK is the default number of search results.
	TopK int
}

// Engine is the vector index façade. Mutating operations are serialized
// by an internal mutex; searches may run concurrently.
type Engine struct {
	mu          sync.Mutex
	embedder    Embedder
	index       vectorstore.Index
	store       *storage.DocStore
	snapshotDir string
	batchSize   int
	topK        int
}

// Open loads the index from snapshotDir, or creates a fresh
// placeholder-seeded one when no snapshot exists. A corrupt snapshot is
// logged and replaced with a fresh index rather than failing startup.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Embedder == nil || opts.Index == nil {
		return nil, fmt.Errorf("embedder and index backend are required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}

	logger := contextutil.LoggerFromContext(ctx)

	store, err := storage.Open(filepath.Join(opts.SnapshotDir, docstoreFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	e := &Engine{
		embedder:    opts.Embedder,
		index:       opts.Index,
		store:       store,
		snapshotDir: opts.SnapshotDir,
		batchSize:   opts.BatchSize,
		topK:        opts.TopK,
	}

	if err := e.index.Load(opts.SnapshotDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no existing snapshot, creating fresh index", "dir", opts.SnapshotDir)
		} else {
			logger.Error("snapshot load failed, starting with a fresh index", "dir", opts.SnapshotDir, "error", err)
		}
		if err := e.store.Clear(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to reset document store: %w", err)
		}
	} else if err := e.reconcile(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	n, err := e.store.Count(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if n == 0 {
		if err := e.seedPlaceholder(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to seed index: %w", err)
		}
	}

	return e, nil
}

// Close releases the document store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// reconcile drops ids present in only one half of the snapshot. The
// vector backend and the docstore are saved at slightly different
// moments, so a crash can leave orphans on either side.
func (e *Engine) reconcile(ctx context.Context) error {
	lister, ok := e.index.(interface{ IDs() []string })
	if !ok {
		return nil
	}

	storeIDs, err := e.store.AllIDs(ctx)
	if err != nil {
		return err
	}
	inStore := make(map[string]bool, len(storeIDs))
	for _, id := range storeIDs {
		inStore[id] = true
	}

	indexIDs := lister.IDs()
	inIndex := make(map[string]bool, len(indexIDs))
	var dropFromIndex []string
	for _, id := range indexIDs {
		inIndex[id] = true
		if !inStore[id] {
			dropFromIndex = append(dropFromIndex, id)
		}
	}
	var dropFromStore []string
	for _, id := range storeIDs {
		if !inIndex[id] {
			dropFromStore = append(dropFromStore, id)
		}
	}

	if len(dropFromIndex) > 0 {
		if err := e.index.Delete(ctx, dropFromIndex); err != nil {
			return fmt.Errorf("failed to drop orphaned vectors: %w", err)
		}
	}
	if len(dropFromStore) > 0 {
		if err := e.store.Delete(ctx, dropFromStore); err != nil {
			return fmt.Errorf("failed to drop orphaned chunks: %w", err)
		}
	}
	if len(dropFromIndex) > 0 || len(dropFromStore) > 0 {
		contextutil.LoggerFromContext(ctx).Warn("reconciled snapshot orphans",
			"dropped_vectors", len(dropFromIndex), "dropped_chunks", len(dropFromStore))
	}
	return nil
}

func (e *Engine) seedPlaceholder(ctx context.Context) error {
	seed := document.Chunk{
		ID:   placeholderSource + "_" + uuid.NewString(),
		Text: "index initialized",
		Metadata: map[string]any{
			document.MetaSource: placeholderSource,
		},
	}
	if err := e.insertBatch(ctx, []document.Chunk{seed}); err != nil {
		return err
	}
	return e.save(ctx)
}

// Insert embeds and stores chunks, then persists the snapshot. When ids
// is nil one id per chunk is generated as {source}_{uuid}; the assigned
// ids are returned. A caller-supplied ids slice must match chunks in
// length or the call fails with ErrCountMismatch before any mutation.
// Empty chunks is a no-op.
func (e *Engine) Insert(ctx context.Context, chunks []document.Chunk, ids []string) ([]string, error) {
	if ids != nil && len(ids) != len(chunks) {
		return nil, fmt.Errorf("%w: %d ids for %d chunks", ErrCountMismatch, len(ids), len(chunks))
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	assigned := make([]string, len(chunks))
	for i := range chunks {
		if ids != nil {
			chunks[i].ID = ids[i]
		} else {
			chunks[i].ID = chunks[i].Source() + "_" + uuid.NewString()
		}
		assigned[i] = chunks[i].ID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for start := 0; start < len(chunks); start += e.batchSize {
		end := min(start+e.batchSize, len(chunks))
		if err := e.insertBatch(ctx, chunks[start:end]); err != nil {
			return nil, err
		}
	}

	if err := e.save(ctx); err != nil {
		return nil, err
	}
	return assigned, nil
}

// insertBatch embeds one batch and writes it to the vector backend and
// the document store. Caller holds the mutex (or is still constructing).
func (e *Engine) insertBatch(ctx context.Context, chunks []document.Chunk) error {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vecs, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = vectorstore.Point{ID: chunk.ID, Vec: vecs[i]}
	}
	if err := e.index.Insert(ctx, points); err != nil {
		return fmt.Errorf("failed to insert vectors: %w", err)
	}
	if err := e.store.InsertBatch(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return nil
}

// save persists the vector backend to the snapshot directory. A save
// failure leaves memory and disk inconsistent until the next successful
// save, so it is logged distinctly from insert failures.
func (e *Engine) save(ctx context.Context) error {
	if err := e.index.Save(e.snapshotDir); err != nil {
		contextutil.LoggerFromContext(ctx).Error("snapshot save failed, in-memory index is ahead of disk",
			"dir", e.snapshotDir, "error", err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// ScoredChunk is a search hit with its similarity score.
type ScoredChunk struct {
	Chunk document.Chunk
	Score float32
}

// Search embeds the query and returns the k nearest chunks. k <= 0 uses
// the configured default. The placeholder seed record is never returned.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]document.Chunk, error) {
	scored, err := e.SearchWithScore(ctx, query, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]document.Chunk, len(scored))
	for i, s := range scored {
		chunks[i] = s.Chunk
	}
	return chunks, nil
}

// SearchWithScore is Search with each hit's similarity score attached.
func (e *Engine) SearchWithScore(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if k <= 0 {
		k = e.topK
	}

	vecs, err := e.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// One extra candidate so filtering the placeholder cannot shrink a
	// full result page.
	matches, err := e.index.Search(ctx, vecs[0], k+1)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]ScoredChunk, 0, k)
	for _, match := range matches {
		if len(results) == k {
			break
		}
		if strings.HasPrefix(match.ID, placeholderSource+"_") {
			continue
		}
		chunk, err := e.store.Get(ctx, match.ID)
		if errors.Is(err, storage.ErrNotFound) {
			contextutil.LoggerFromContext(ctx).Warn("search hit has no stored chunk", "id", match.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, ScoredChunk{Chunk: chunk, Score: match.Score})
	}
	return results, nil
}

// Delete removes ids from the vector backend and the document store,
// then re-persists the snapshot. Deletion is best-effort maintenance:
// failures are logged and reported as false rather than returned.
func (e *Engine) Delete(ctx context.Context, ids []string) bool {
	if len(ids) == 0 {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	logger := contextutil.LoggerFromContext(ctx)
	if err := e.index.Delete(ctx, ids); err != nil {
		logger.Error("failed to delete vectors", "count", len(ids), "error", err)
		return false
	}
	if err := e.store.Delete(ctx, ids); err != nil {
		logger.Error("failed to delete stored chunks", "count", len(ids), "error", err)
		return false
	}
	if err := e.save(ctx); err != nil {
		return false
	}
	return true
}

// DeleteBySource removes every chunk whose id begins with
// "{source_path}_" for each given source path. Returns false when no
// stored id matches any source.
func (e *Engine) DeleteBySource(ctx context.Context, sources []string) bool {
	var ids []string
	for _, source := range sources {
		matched, err := e.store.IDsBySourcePrefix(ctx, source+"_")
		if err != nil {
			contextutil.LoggerFromContext(ctx).Error("failed to resolve source ids", "source", source, "error", err)
			return false
		}
		ids = append(ids, matched...)
	}
	if len(ids) == 0 {
		return false
	}
	return e.Delete(ctx, ids)
}

// Count returns the number of stored chunks, including the placeholder.
func (e *Engine) Count(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}

// Clear replaces the whole index with a fresh placeholder-seeded one
// and persists it. Irreversible.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.index.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear vector backend: %w", err)
	}
	if err := e.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear document store: %w", err)
	}
	return e.seedPlaceholder(ctx)
}
