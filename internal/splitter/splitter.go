// Package splitter implements recursive character splitting of document
// text into bounded, overlapping chunks.
package splitter

import (
	"strings"
	"unicode/utf8"

	"docuchat/internal/document"
)

// defaultSeparators is tried coarsest to finest: paragraph break, line
// break, sentence-ending punctuation (CJK and Latin), space, and finally
// individual runes when nothing else fits.
var defaultSeparators = []string{"\n\n", "\n", "。", "！", "？", ".", "!", "?", " ", ""}

// Splitter splits text into chunks of at most chunkSize runes, where
// adjacent chunks share a chunkOverlap-rune boundary. Sizes are measured
// in runes so CJK text is not over-penalized.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// New creates a Splitter. chunkSize must be positive; chunkOverlap is
// clamped to [0, chunkSize).
func New(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split chunks each document's text and stamps every chunk with a copy of
// its document's metadata. Documents whose text is empty or whitespace
// contribute zero chunks.
func (s *Splitter) Split(docs []document.Document) []document.Chunk {
	var chunks []document.Chunk
	for _, doc := range docs {
		for _, piece := range s.SplitText(doc.Text) {
			chunks = append(chunks, document.Chunk{
				Text:     piece,
				Metadata: document.CloneMetadata(doc.Metadata),
			})
		}
	}
	return chunks
}

// SplitText splits raw text into chunk strings. A text shorter than the
// chunk size yields exactly one chunk; empty or whitespace-only text
// yields none.
func (s *Splitter) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}
	pieces := s.split(text, s.separators)
	return s.merge(pieces)
}

// split recursively breaks text into pieces no longer than chunkSize,
// preferring the coarsest separator that appears in the text. Separators
// stay attached to the end of the piece they terminate, so concatenating
// the pieces reconstructs the input.
func (s *Splitter) split(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}

	sep := ""
	rest := seps
	for len(rest) > 0 {
		sep = rest[0]
		rest = rest[1:]
		if sep == "" || strings.Contains(text, sep) {
			break
		}
	}

	if sep == "" {
		// Last resort: emit individual runes and let merge reassemble
		// fixed-size windows.
		runes := []rune(text)
		pieces := make([]string, len(runes))
		for i, r := range runes {
			pieces[i] = string(r)
		}
		return pieces
	}

	var pieces []string
	remaining := text
	for {
		idx := strings.Index(remaining, sep)
		if idx < 0 {
			if remaining != "" {
				pieces = append(pieces, s.split(remaining, rest)...)
			}
			break
		}
		piece := remaining[:idx+len(sep)]
		pieces = append(pieces, s.split(piece, rest)...)
		remaining = remaining[idx+len(sep):]
	}
	return pieces
}

// merge greedily joins pieces into chunks of at most chunkSize runes.
// When a chunk fills up, the next chunk starts with the previous chunk's
// trailing chunkOverlap runes, reduced if the next piece would not
// otherwise fit within the size bound.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var cur []rune

	for _, piece := range pieces {
		pr := []rune(piece)
		if len(cur) > 0 && len(cur)+len(pr) > s.chunkSize {
			chunks = append(chunks, string(cur))

			overlap := s.chunkOverlap
			if overlap+len(pr) > s.chunkSize {
				overlap = s.chunkSize - len(pr)
			}
			if overlap < 0 {
				overlap = 0
			}
			if overlap > len(cur) {
				overlap = len(cur)
			}
			tail := cur[len(cur)-overlap:]
			cur = append([]rune(nil), tail...)
		}
		cur = append(cur, pr...)
	}

	if strings.TrimSpace(string(cur)) != "" {
		chunks = append(chunks, string(cur))
	}
	return chunks
}
