// Package ingest wires the document loader and the vector index engine
// into the ingestion flow: load and split a file, embed and persist its
// chunks, then record the source in the ledger.
package ingest

import (
	"context"
	"fmt"

	"docuchat/internal/contextutil"
	"docuchat/internal/document"
	"docuchat/internal/loader"
)

// Inserter is the slice of the vector index engine the pipeline needs.
type Inserter interface {
	Insert(ctx context.Context, chunks []document.Chunk, ids []string) ([]string, error)
}

// Pipeline runs files through load, embed, persist and ledger record,
// strictly in that order. The ledger write comes last so a crash before
// it leaves the file eligible for a clean retry.
type Pipeline struct {
	loader *loader.Loader
	engine Inserter
}

// New creates a Pipeline.
func New(l *loader.Loader, engine Inserter) *Pipeline {
	return &Pipeline{loader: l, engine: engine}
}

// IngestFile ingests one file and returns the number of chunks stored.
// With skipRecorded set, a file already in the ledger is a zero-chunk
// no-op.
func (p *Pipeline) IngestFile(ctx context.Context, path string, skipRecorded bool) (int, error) {
	chunks, err := p.loader.ProcessWithDedup(ctx, path, skipRecorded)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	if _, err := p.engine.Insert(ctx, chunks, nil); err != nil {
		return 0, fmt.Errorf("failed to index %s: %w", path, err)
	}

	if err := p.loader.MarkIngested(path); err != nil {
		// Chunks are stored but the source is not recorded, so the
		// next run ingests the file again.
		contextutil.LoggerFromContext(ctx).Error("chunks stored but ledger record failed", "path", path, "error", err)
		return len(chunks), err
	}
	return len(chunks), nil
}

// DirResult summarizes a directory sweep.
type DirResult struct {
	Files  int
	Chunks int
	Failed int
}

// IngestDir sweeps every supported file under dir. Per-file failures
// are logged and counted, not fatal; cancellation stops the sweep
// between files.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (DirResult, error) {
	paths, err := loader.ScanDir(ctx, dir)
	if err != nil {
		return DirResult{}, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	logger := contextutil.LoggerFromContext(ctx)
	var res DirResult
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := p.IngestFile(ctx, path, true)
		if err != nil {
			logger.Error("failed to ingest file", "path", path, "error", err)
			res.Failed++
			continue
		}
		if n > 0 {
			res.Files++
			res.Chunks += n
		}
	}
	logger.Info("directory sweep finished",
		"dir", dir, "files", res.Files, "chunks", res.Chunks, "failed", res.Failed)
	return res, nil
}
