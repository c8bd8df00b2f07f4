// Package document defines the data model shared by the loader, the
// splitter, and the vector index engine.
package document

// Metadata keys stamped on every loaded document.
const (
	MetaSource   = "source"
	MetaFileName = "file_name"
	MetaFileType = "file_type"
)

// Document is raw text plus source metadata, the input to the splitter.
type Document struct {
	Text     string
	Metadata map[string]any
}

// Chunk is a bounded segment of a document's text, the unit of embedding
// and retrieval. ID is empty until the engine assigns one on insert
// (format: "{source}_{uuid}").
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Source returns the source path stamped on the chunk, or "" if missing.
func (c Chunk) Source() string {
	if c.Metadata == nil {
		return ""
	}
	if s, ok := c.Metadata[MetaSource].(string); ok {
		return s
	}
	return ""
}

// CloneMetadata copies a metadata map so chunks from the same document do
// not share mutable state.
func CloneMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
