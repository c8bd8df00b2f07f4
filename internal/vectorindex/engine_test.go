package vectorindex

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"docuchat/internal/document"
	"docuchat/internal/vectorindex/mocks"
	"docuchat/internal/vectorstore"
)

// fakeVec derives a stable vector from text, so identical texts embed
// identically and distinct texts diverge.
func fakeVec(text string) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()
	v := make([]float32, 8)
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%1000)/1000.0 + 0.001
	}
	return v
}

func newFakeEmbedder(t *testing.T) *mocks.MockEmbedder {
	t.Helper()
	ctrl := gomock.NewController(t)
	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().
		EmbedTexts(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i, text := range texts {
				out[i] = fakeVec(text)
			}
			return out, nil
		}).
		AnyTimes()
	return embedder
}

func openTestEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	engine, err := Open(context.Background(), Options{
		Embedder:    newFakeEmbedder(t),
		Index:       vectorstore.NewFlat(),
		SnapshotDir: dir,
		BatchSize:   2,
		TopK:        5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = engine.Close()
	})
	return engine
}

func chunkFor(source, text string) document.Chunk {
	return document.Chunk{
		Text: text,
		Metadata: map[string]any{
			document.MetaSource: source,
		},
	}
}

func TestInsertGeneratesDistinctIDs(t *testing.T) {
	engine := openTestEngine(t, t.TempDir())
	ctx := context.Background()

	chunks := []document.Chunk{
		chunkFor("notes.txt", "alpha"),
		chunkFor("notes.txt", "beta"),
		chunkFor("notes.txt", "gamma"),
	}
	ids, err := engine.Insert(ctx, chunks, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("Insert() returned %d ids, want 3", len(ids))
	}
	seen := make(map[string]bool)
	for _, id := range ids {
		if !strings.HasPrefix(id, "notes.txt_") {
			t.Errorf("id %q does not carry the source prefix", id)
		}
		if seen[id] {
			t.Errorf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestInsertCountMismatch(t *testing.T) {
	engine := openTestEngine(t, t.TempDir())
	ctx := context.Background()

	chunks := []document.Chunk{
		chunkFor("a.txt", "one"),
		chunkFor("a.txt", "two"),
		chunkFor("a.txt", "three"),
		chunkFor("a.txt", "four"),
		chunkFor("a.txt", "five"),
	}
	_, err := engine.Insert(ctx, chunks, []string{"a.txt_1", "a.txt_2", "a.txt_3"})
	if !errors.Is(err, ErrCountMismatch) {
		t.Fatalf("Insert() error = %v, want ErrCountMismatch", err)
	}

	results, err := engine.Search(ctx, "one", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search() after failed insert returned %d chunks, want 0", len(results))
	}
}

func TestInsertEmptyIsNoOp(t *testing.T) {
	engine := openTestEngine(t, t.TempDir())

	ids, err := engine.Insert(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if ids != nil {
		t.Errorf("Insert() ids = %v, want nil", ids)
	}
}

func TestSearchReturnsOwnChunkFirst(t *testing.T) {
	engine := openTestEngine(t, t.TempDir())
	ctx := context.Background()

	chunks := []document.Chunk{
		chunkFor("guide.md", "how to configure the ingestion pipeline"),
		chunkFor("guide.md", "troubleshooting embedding errors"),
		chunkFor("guide.md", "snapshot directory layout"),
	}
	ids, err := engine.Insert(ctx, chunks, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	for i, chunk := range chunks {
		results, err := engine.SearchWithScore(ctx, chunk.Text, 3)
		if err != nil {
			t.Fatalf("SearchWithScore(%q) error = %v", chunk.Text, err)
		}
		if len(results) == 0 {
			t.Fatalf("SearchWithScore(%q) returned no results", chunk.Text)
		}
		if results[0].Chunk.ID != ids[i] {
			t.Errorf("top result for %q = %s, want %s", chunk.Text, results[0].Chunk.ID, ids[i])
		}
	}
}

func TestSearchFiltersPlaceholder(t *testing.T) {
	engine := openTestEngine(t, t.TempDir())

	results, err := engine.Search(context.Background(), "anything at all", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search() on fresh index returned %d chunks, want 0", len(results))
	}
}

func TestDeleteBySource(t *testing.T) {
	engine := openTestEngine(t, t.TempDir())
	ctx := context.Background()

	keepChunks := []document.Chunk{chunkFor("keep.txt", "kept content")}
	dropChunks := []document.Chunk{
		chunkFor("drop.txt", "doomed content one"),
		chunkFor("drop.txt", "doomed content two"),
	}
	if _, err := engine.Insert(ctx, keepChunks, nil); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := engine.Insert(ctx, dropChunks, nil); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if ok := engine.DeleteBySource(ctx, []string{"drop.txt"}); !ok {
		t.Fatal("DeleteBySource() = false, want true")
	}

	results, err := engine.Search(ctx, "doomed content one", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, chunk := range results {
		if chunk.Source() == "drop.txt" {
			t.Errorf("deleted source still present in results: %s", chunk.ID)
		}
	}

	results, err = engine.Search(ctx, "kept content", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Source() != "keep.txt" {
		t.Errorf("surviving source lost: results = %+v", results)
	}
}

func TestDeleteBySourceNoMatches(t *testing.T) {
	engine := openTestEngine(t, t.TempDir())

	if ok := engine.DeleteBySource(context.Background(), []string{"ghost.txt"}); ok {
		t.Error("DeleteBySource() = true for unknown source, want false")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	engine := openTestEngine(t, dir)
	ids, err := engine.Insert(ctx, []document.Chunk{chunkFor("persist.txt", "durable text")}, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := openTestEngine(t, dir)
	results, err := reopened.Search(ctx, "durable text", 3)
	if err != nil {
		t.Fatalf("Search() after reopen error = %v", err)
	}
	if len(results) == 0 || results[0].ID != ids[0] {
		t.Fatalf("Search() after reopen = %+v, want top id %s", results, ids[0])
	}
}

func TestClear(t *testing.T) {
	engine := openTestEngine(t, t.TempDir())
	ctx := context.Background()

	if _, err := engine.Insert(ctx, []document.Chunk{chunkFor("c.txt", "transient")}, nil); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := engine.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	results, err := engine.Search(ctx, "transient", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search() after Clear() returned %d chunks, want 0", len(results))
	}
}

func TestRetriever(t *testing.T) {
	engine := openTestEngine(t, t.TempDir())
	ctx := context.Background()

	chunks := []document.Chunk{
		chunkFor("r.txt", "first entry"),
		chunkFor("r.txt", "second entry"),
		chunkFor("r.txt", "third entry"),
	}
	if _, err := engine.Insert(ctx, chunks, nil); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	retriever := engine.Retriever(2)
	results, err := retriever.Retrieve(ctx, "first entry")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Retrieve() returned %d chunks, want 2", len(results))
	}
}
