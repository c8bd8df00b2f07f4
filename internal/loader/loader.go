// Package loader turns source files into chunk records ready for
// indexing. It dispatches on file extension, tags every document with
// source metadata before splitting, and consults the ingestion ledger
// to keep re-ingestion idempotent.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"docuchat/internal/contextutil"
	"docuchat/internal/document"
	"docuchat/internal/ledger"
	"docuchat/internal/splitter"
)

// UnsupportedFormatError reports a file extension no extractor handles.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q (supported: %s)",
		e.Extension, strings.Join(SupportedExtensions(), ", "))
}

// extractors maps a lowercase extension to its text extractor. Legacy
// .doc files go through the docx extractor and fail at load time when
// the file is not actually a ZIP container.
var extractors = map[string]func(path string) (string, error){
	".pdf":  extractPDF,
	".doc":  extractDOCX,
	".docx": extractDOCX,
	".txt":  extractPlainText,
	".html": extractHTML,
	".htm":  extractHTML,
	".md":   extractMarkdown,
}

// SupportedExtensions returns the handled extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supported reports whether path's extension has an extractor.
func Supported(path string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Loader reads, tags and splits source files.
type Loader struct {
	splitter *splitter.Splitter
	ledger   *ledger.Ledger
}

// New creates a Loader that splits with s and records ingestions in l.
func New(s *splitter.Splitter, l *ledger.Ledger) *Loader {
	return &Loader{splitter: s, ledger: l}
}

// Load reads path, extracts its text, stamps source metadata and splits
// it into chunks. Files with an unhandled extension fail with
// UnsupportedFormatError; unreadable or malformed files fail with a
// wrapped extraction error.
func (l *Loader) Load(path string) ([]document.Chunk, error) {
	ext := strings.ToLower(filepath.Ext(path))
	extract, ok := extractors[ext]
	if !ok {
		return nil, &UnsupportedFormatError{Extension: ext}
	}

	text, err := extract(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	source, err := sourceID(path)
	if err != nil {
		return nil, err
	}

	doc := document.Document{
		Text: text,
		Metadata: map[string]any{
			document.MetaSource:   source,
			document.MetaFileName: filepath.Base(path),
			document.MetaFileType: strings.TrimPrefix(ext, "."),
		},
	}
	return l.splitter.Split([]document.Document{doc}), nil
}

// ProcessWithDedup is Load guarded by the ingestion ledger. With
// skipRecorded set, a path already in the ledger yields zero chunks
// without touching the file. It never records the path itself; callers
// confirm storage first and then call MarkIngested.
func (l *Loader) ProcessWithDedup(ctx context.Context, path string, skipRecorded bool) ([]document.Chunk, error) {
	if skipRecorded {
		source, err := sourceID(path)
		if err != nil {
			return nil, err
		}
		recorded, err := l.ledger.IsRecorded(source)
		if err != nil {
			return nil, fmt.Errorf("failed to consult ingestion ledger: %w", err)
		}
		if recorded {
			contextutil.LoggerFromContext(ctx).Info("skipping already ingested file", "source", source)
			return nil, nil
		}
	}
	return l.Load(path)
}

// MarkIngested records path in the ingestion ledger. Call only after
// the file's chunks have been embedded and persisted.
func (l *Loader) MarkIngested(path string) error {
	source, err := sourceID(path)
	if err != nil {
		return err
	}
	if err := l.ledger.Record(source); err != nil {
		return fmt.Errorf("failed to record ingestion: %w", err)
	}
	return nil
}

// sourceID is the stable source identifier for a file: its absolute
// path. The same file must map to the same identifier across runs for
// ledger dedup and id-prefix deletes to line up.
func sourceID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	return abs, nil
}
