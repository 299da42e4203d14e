package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"

	"github.com/lorekit/lore/internal/log"
)

const (
	// defaultTopK is the result count when WithTopK is not given.
	defaultTopK = 2
	// embedTimeout bounds a single embedding round trip to Ollama.
	embedTimeout = 60 * time.Second
	// searchTimeout bounds the vector query itself.
	searchTimeout = 5 * time.Second
)

// Store persists and searches embedded document chunks.
type Store struct {
	q        Querier
	embedder ai.Embedder
	logger   log.Logger
}

// NewStore wires a Store from its dependencies. A nil logger falls back
// to a no-op logger so tests stay quiet.
func NewStore(q Querier, embedder ai.Embedder, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{q: q, embedder: embedder, logger: logger}
}

// Add embeds content and upserts it under id. Metadata is stored as JSONB
// and drives search filters and source attribution.
func (s *Store) Add(ctx context.Context, id, content string, metadata map[string]any) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if id == "" {
		return fmt.Errorf("knowledge: empty document id")
	}

	vec, err := s.embed(ctx, content)
	if err != nil {
		return err
	}

	if err := s.q.UpsertDocument(ctx, UpsertDocumentParams{
		ID:        id,
		Content:   content,
		Embedding: vec,
		Metadata:  metadata,
	}); err != nil {
		return err
	}

	s.logger.Debug("document stored", "id", id, "content_length", len(content))
	return nil
}

// Search embeds query and returns the nearest chunks by cosine similarity.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	o := searchOptions{topK: defaultTopK}
	for _, opt := range opts {
		opt(&o)
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	results, err := s.q.SearchDocuments(searchCtx, SearchDocumentsParams{
		Embedding: vec,
		Filter:    o.filter,
		Limit:     o.topK,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("search completed", "query_length", len(query), "results", len(results))
	return results, nil
}

// Get fetches a single document by ID.
func (s *Store) Get(ctx context.Context, id string) (Document, error) {
	return s.q.GetDocument(ctx, id)
}

// List returns stored documents newest first.
func (s *Store) List(ctx context.Context, limit, offset int, filter map[string]any) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.q.ListDocuments(ctx, ListDocumentsParams{Filter: filter, Limit: limit, Offset: offset})
}

// Count reports how many documents match filter (nil counts everything).
func (s *Store) Count(ctx context.Context, filter map[string]any) (int64, error) {
	return s.q.CountDocuments(ctx, filter)
}

// Delete removes one document. It returns ErrNotFound when id is unknown.
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.q.DeleteDocument(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByFilePath removes every chunk previously indexed from path.
// Reindexing calls this before adding the fresh chunks so that renamed or
// shrunk files do not leave stale nodes behind.
func (s *Store) DeleteByFilePath(ctx context.Context, path string) (int64, error) {
	return s.q.DeleteDocumentsByMetadata(ctx, map[string]any{MetaFilePath: path})
}

// DeleteByDirPath removes every chunk indexed from files under dir. The
// trailing separator keeps "docs" from also matching "docs-old/...".
func (s *Store) DeleteByDirPath(ctx context.Context, dir string) (int64, error) {
	prefix := strings.TrimRight(dir, "/") + "/"
	return s.q.DeleteDocumentsByPathPrefix(ctx, prefix)
}

func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("%w: empty embedding returned", ErrEmbeddingFailed)
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
