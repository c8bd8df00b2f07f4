package vectorstore

import (
	"context"
	"errors"
	"os"
	"testing"
)

func testPoints() []Point {
	return []Point{
		{ID: "a_1", Vec: []float32{1, 0, 0}},
		{ID: "a_2", Vec: []float32{0, 1, 0}},
		{ID: "b_1", Vec: []float32{0, 0, 1}},
	}
}

func TestFlat_InsertAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := NewFlat()

	if err := idx.Insert(ctx, testPoints()); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if idx.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", idx.Len())
	}

	matches, err := idx.Search(ctx, []float32{0.9, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Search() returned %d matches, want 2", len(matches))
	}
	if matches[0].ID != "a_1" {
		t.Errorf("top match = %s, want a_1", matches[0].ID)
	}
	if matches[0].Score <= matches[1].Score {
		t.Errorf("scores not descending: %v then %v", matches[0].Score, matches[1].Score)
	}
}

func TestFlat_InsertReplacesExistingID(t *testing.T) {
	ctx := context.Background()
	idx := NewFlat()

	if err := idx.Insert(ctx, testPoints()); err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(ctx, []Point{{ID: "a_1", Vec: []float32{0, 0, 1}}}); err != nil {
		t.Fatalf("Insert() replace error: %v", err)
	}
	if idx.Len() != 3 {
		t.Errorf("Len() = %d after replace, want 3", idx.Len())
	}

	matches, err := idx.Search(ctx, []float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 || (matches[0].ID != "a_1" && matches[0].ID != "b_1") {
		t.Errorf("unexpected top match %+v", matches)
	}
}

func TestFlat_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewFlat()

	if err := idx.Insert(ctx, testPoints()); err != nil {
		t.Fatal(err)
	}

	err := idx.Insert(ctx, []Point{{ID: "x", Vec: []float32{1, 2}}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Insert() with wrong dim = %v, want ErrDimensionMismatch", err)
	}

	_, err = idx.Search(ctx, []float32{1, 2}, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Search() with wrong dim = %v, want ErrDimensionMismatch", err)
	}
}

func TestFlat_Delete(t *testing.T) {
	ctx := context.Background()
	idx := NewFlat()

	if err := idx.Insert(ctx, testPoints()); err != nil {
		t.Fatal(err)
	}
	if err := idx.Delete(ctx, []string{"a_1", "missing"}); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("Len() = %d after delete, want 2", idx.Len())
	}

	matches, err := idx.Search(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range matches {
		if m.ID == "a_1" {
			t.Error("deleted id a_1 still returned by Search()")
		}
	}
}

func TestFlat_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx := NewFlat()
	if err := idx.Insert(ctx, testPoints()); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(dir); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	restored := NewFlat()
	if err := restored.Load(dir); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if restored.Len() != 3 {
		t.Fatalf("Len() = %d after load, want 3", restored.Len())
	}

	matches, err := restored.Search(ctx, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ID != "a_1" {
		t.Errorf("Search() after load = %+v, want top match a_1", matches)
	}
}

func TestFlat_LoadMissingSnapshot(t *testing.T) {
	err := NewFlat().Load(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() on empty dir = %v, want os.ErrNotExist", err)
	}
}

func TestFlat_LoadCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/"+flatSnapshotFile, []byte("not a gob stream"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := NewFlat().Load(dir); err == nil {
		t.Error("Load() on corrupt snapshot succeeded, want error")
	}
}

func TestFlat_ClearResetsDimension(t *testing.T) {
	ctx := context.Background()
	idx := NewFlat()

	if err := idx.Insert(ctx, testPoints()); err != nil {
		t.Fatal(err)
	}
	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("Len() = %d after clear, want 0", idx.Len())
	}

	// A different dimension is accepted after Clear.
	if err := idx.Insert(ctx, []Point{{ID: "x", Vec: []float32{1, 2}}}); err != nil {
		t.Errorf("Insert() after clear: %v", err)
	}
}

func TestPointID_Deterministic(t *testing.T) {
	a := pointID("/docs/a.txt_123e4567-e89b-12d3-a456-426614174000")
	b := pointID("/docs/a.txt_123e4567-e89b-12d3-a456-426614174000")
	c := pointID("/docs/b.txt_123e4567-e89b-12d3-a456-426614174000")

	if a != b {
		t.Error("pointID() is not deterministic for equal inputs")
	}
	if a == c {
		t.Error("pointID() collides for distinct inputs")
	}
	if len(a) != 36 {
		t.Errorf("pointID() = %q, want canonical UUID form", a)
	}
}
