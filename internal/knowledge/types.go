package knowledge

import (
	"errors"
	"time"
)

// Metadata keys stored alongside every chunk. The keys mirror what the
// generate step writes so that filters and source attribution agree.
const (
	MetaFileName   = "file_name"
	MetaFilePath   = "file_path"
	MetaPage       = "page"
	MetaChunkIndex = "chunk_index"
	MetaSourceType = "source_type"
	MetaIndexedAt  = "indexed_at"
)

// SourceTypeFile marks chunks that came from files under the data directory.
const SourceTypeFile = "file"

var (
	// ErrEmptyContent is returned when a document with no content is added.
	ErrEmptyContent = errors.New("knowledge: empty content")
	// ErrEmptyQuery is returned when Search is called with an empty query.
	ErrEmptyQuery = errors.New("knowledge: empty query")
	// ErrEmbeddingFailed wraps embedder errors.
	ErrEmbeddingFailed = errors.New("knowledge: embedding failed")
	// ErrNotFound is returned when a document ID does not exist.
	ErrNotFound = errors.New("knowledge: document not found")
)

// Document is a single embedded chunk as stored in PostgreSQL.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// Result is a search hit with its cosine similarity (1 = identical).
type Result struct {
	Document
	Similarity float32 `json:"similarity"`
}

// SearchOption configures a Search call.
type SearchOption func(*searchOptions)

type searchOptions struct {
	topK   int
	filter map[string]any
}

// WithTopK overrides the default number of results.
func WithTopK(k int) SearchOption {
	return func(o *searchOptions) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithFilter restricts results to documents whose metadata contains all
// of the given key/value pairs (JSONB containment).
func WithFilter(filter map[string]any) SearchOption {
	return func(o *searchOptions) {
		o.filter = filter
	}
}

// WithSourceType is shorthand for a source_type metadata filter.
func WithSourceType(sourceType string) SearchOption {
	return WithFilter(map[string]any{MetaSourceType: sourceType})
}
