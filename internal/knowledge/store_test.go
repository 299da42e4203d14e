package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder returns a fixed vector unless told to fail.
type mockEmbedder struct {
	embedErr    error
	returnEmpty bool
	embedding   []float32
	callCount   int
	lastInput   string
}

func (m *mockEmbedder) Name() string { return "mock/embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastInput = req.Input[0].Content[0].Text
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{}, nil
	}
	emb := m.embedding
	if emb == nil {
		emb = []float32{0.1, 0.2, 0.3}
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: emb}},
	}, nil
}

// mockQuerier records calls and returns canned results.
type mockQuerier struct {
	upsertErr  error
	searchErr  error
	deleteErr  error
	search     []Result
	deleted    int64
	upserts    []UpsertDocumentParams
	lastSearch SearchDocumentsParams
	lastPrefix string
}

func (m *mockQuerier) UpsertDocument(_ context.Context, p UpsertDocumentParams) error {
	m.upserts = append(m.upserts, p)
	return m.upsertErr
}

func (m *mockQuerier) SearchDocuments(_ context.Context, p SearchDocumentsParams) ([]Result, error) {
	m.lastSearch = p
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.search, nil
}

func (m *mockQuerier) GetDocument(_ context.Context, id string) (Document, error) {
	for _, r := range m.search {
		if r.ID == id {
			return r.Document, nil
		}
	}
	return Document{}, ErrNotFound
}

func (m *mockQuerier) ListDocuments(_ context.Context, _ ListDocumentsParams) ([]Document, error) {
	docs := make([]Document, 0, len(m.search))
	for _, r := range m.search {
		docs = append(docs, r.Document)
	}
	return docs, nil
}

func (m *mockQuerier) CountDocuments(_ context.Context, _ map[string]any) (int64, error) {
	return int64(len(m.search)), nil
}

func (m *mockQuerier) DeleteDocument(_ context.Context, _ string) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	return m.deleted, nil
}

func (m *mockQuerier) DeleteDocumentsByMetadata(_ context.Context, _ map[string]any) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	return m.deleted, nil
}

func (m *mockQuerier) DeleteDocumentsByPathPrefix(_ context.Context, prefix string) (int64, error) {
	m.lastPrefix = prefix
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	return m.deleted, nil
}

func TestStoreAdd(t *testing.T) {
	t.Parallel()

	t.Run("stores embedded content", func(t *testing.T) {
		t.Parallel()
		emb := &mockEmbedder{}
		q := &mockQuerier{}
		s := NewStore(q, emb, nil)

		meta := map[string]any{MetaSourceType: SourceTypeFile, MetaFileName: "guide.md"}
		err := s.Add(context.Background(), "guide.md#0", "installation guide", meta)
		require.NoError(t, err)

		require.Len(t, q.upserts, 1)
		assert.Equal(t, "guide.md#0", q.upserts[0].ID)
		assert.Equal(t, "installation guide", q.upserts[0].Content)
		assert.Equal(t, meta, q.upserts[0].Metadata)
		assert.Equal(t, "installation guide", emb.lastInput)
	})

	t.Run("rejects empty content", func(t *testing.T) {
		t.Parallel()
		s := NewStore(&mockQuerier{}, &mockEmbedder{}, nil)

		err := s.Add(context.Background(), "id", "   ", nil)
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		t.Parallel()
		s := NewStore(&mockQuerier{}, &mockEmbedder{}, nil)

		err := s.Add(context.Background(), "", "content", nil)
		assert.Error(t, err)
	})

	t.Run("wraps embedder failure", func(t *testing.T) {
		t.Parallel()
		emb := &mockEmbedder{embedErr: errors.New("ollama unreachable")}
		s := NewStore(&mockQuerier{}, emb, nil)

		err := s.Add(context.Background(), "id", "content", nil)
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})

	t.Run("rejects empty embedding response", func(t *testing.T) {
		t.Parallel()
		s := NewStore(&mockQuerier{}, &mockEmbedder{returnEmpty: true}, nil)

		err := s.Add(context.Background(), "id", "content", nil)
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})

	t.Run("propagates upsert failure", func(t *testing.T) {
		t.Parallel()
		q := &mockQuerier{upsertErr: errors.New("connection reset")}
		s := NewStore(q, &mockEmbedder{}, nil)

		err := s.Add(context.Background(), "id", "content", nil)
		assert.Error(t, err)
	})
}

func TestStoreSearch(t *testing.T) {
	t.Parallel()

	t.Run("returns ranked results", func(t *testing.T) {
		t.Parallel()
		q := &mockQuerier{search: []Result{
			{Document: Document{ID: "a#0", Content: "alpha"}, Similarity: 0.92},
			{Document: Document{ID: "b#3", Content: "beta"}, Similarity: 0.81},
		}}
		s := NewStore(q, &mockEmbedder{}, nil)

		results, err := s.Search(context.Background(), "what is alpha?")
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a#0", results[0].ID)
		assert.InDelta(t, 0.92, results[0].Similarity, 0.001)
	})

	t.Run("applies default top k", func(t *testing.T) {
		t.Parallel()
		q := &mockQuerier{}
		s := NewStore(q, &mockEmbedder{}, nil)

		_, err := s.Search(context.Background(), "query")
		require.NoError(t, err)
		assert.Equal(t, defaultTopK, q.lastSearch.Limit)
	})

	t.Run("honours top k and source filter", func(t *testing.T) {
		t.Parallel()
		q := &mockQuerier{}
		s := NewStore(q, &mockEmbedder{}, nil)

		_, err := s.Search(context.Background(), "query",
			WithTopK(7), WithSourceType(SourceTypeFile))
		require.NoError(t, err)
		assert.Equal(t, 7, q.lastSearch.Limit)
		assert.Equal(t, map[string]any{MetaSourceType: SourceTypeFile}, q.lastSearch.Filter)
	})

	t.Run("ignores non-positive top k", func(t *testing.T) {
		t.Parallel()
		q := &mockQuerier{}
		s := NewStore(q, &mockEmbedder{}, nil)

		_, err := s.Search(context.Background(), "query", WithTopK(0))
		require.NoError(t, err)
		assert.Equal(t, defaultTopK, q.lastSearch.Limit)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		t.Parallel()
		s := NewStore(&mockQuerier{}, &mockEmbedder{}, nil)

		_, err := s.Search(context.Background(), "")
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("wraps embedder failure", func(t *testing.T) {
		t.Parallel()
		emb := &mockEmbedder{embedErr: errors.New("model not pulled")}
		s := NewStore(&mockQuerier{}, emb, nil)

		_, err := s.Search(context.Background(), "query")
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})

	t.Run("propagates query failure", func(t *testing.T) {
		t.Parallel()
		q := &mockQuerier{searchErr: errors.New("timeout")}
		s := NewStore(q, &mockEmbedder{}, nil)

		_, err := s.Search(context.Background(), "query")
		assert.Error(t, err)
	})
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()

	t.Run("deletes existing document", func(t *testing.T) {
		t.Parallel()
		s := NewStore(&mockQuerier{deleted: 1}, &mockEmbedder{}, nil)

		assert.NoError(t, s.Delete(context.Background(), "a#0"))
	})

	t.Run("reports missing document", func(t *testing.T) {
		t.Parallel()
		s := NewStore(&mockQuerier{deleted: 0}, &mockEmbedder{}, nil)

		err := s.Delete(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete by file path returns affected count", func(t *testing.T) {
		t.Parallel()
		s := NewStore(&mockQuerier{deleted: 4}, &mockEmbedder{}, nil)

		n, err := s.DeleteByFilePath(context.Background(), "docs/guide.md")
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("delete by dir path queries with trailing separator", func(t *testing.T) {
		t.Parallel()
		q := &mockQuerier{deleted: 3}
		s := NewStore(q, &mockEmbedder{}, nil)

		n, err := s.DeleteByDirPath(context.Background(), "docs/archive")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.Equal(t, "docs/archive/", q.lastPrefix)

		_, err = s.DeleteByDirPath(context.Background(), "docs/archive/")
		require.NoError(t, err)
		assert.Equal(t, "docs/archive/", q.lastPrefix)
	})
}
