package vectorindex

import (
	"context"

	"docuchat/internal/document"
)

// Retriever is a search handle bound to a fixed k, so callers do not
// re-specify it on every query.
type Retriever struct {
	engine *Engine
	k      int
}

// Retriever returns a bound search handle. k <= 0 uses the engine's
// configured default.
func (e *Engine) Retriever(k int) *Retriever {
	if k <= 0 {
		k = e.topK
	}
	return &Retriever{engine: e, k: k}
}

// Retrieve returns the k chunks nearest to query.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]document.Chunk, error) {
	return r.engine.Search(ctx, query, r.k)
}
