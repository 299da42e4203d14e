package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the subset of pgxpool.Pool the queries need. Satisfied by
// *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is the persistence interface the Store depends on.
type Querier interface {
	UpsertDocument(ctx context.Context, p UpsertDocumentParams) error
	SearchDocuments(ctx context.Context, p SearchDocumentsParams) ([]Result, error)
	GetDocument(ctx context.Context, id string) (Document, error)
	ListDocuments(ctx context.Context, p ListDocumentsParams) ([]Document, error)
	CountDocuments(ctx context.Context, filter map[string]any) (int64, error)
	DeleteDocument(ctx context.Context, id string) (int64, error)
	DeleteDocumentsByMetadata(ctx context.Context, filter map[string]any) (int64, error)
	DeleteDocumentsByPathPrefix(ctx context.Context, prefix string) (int64, error)
}

// UpsertDocumentParams are the fields written by UpsertDocument.
type UpsertDocumentParams struct {
	ID        string
	Content   string
	Embedding pgvector.Vector
	Metadata  map[string]any
}

// SearchDocumentsParams control a vector search.
type SearchDocumentsParams struct {
	Embedding pgvector.Vector
	Filter    map[string]any // nil means no metadata filter
	Limit     int
}

// ListDocumentsParams control a metadata listing.
type ListDocumentsParams struct {
	Filter map[string]any
	Limit  int
	Offset int
}

// Queries runs the hand-written SQL against a pgx connection source.
type Queries struct {
	db DBTX
}

// NewQueries returns a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return b, nil
}

const upsertDocumentSQL = `
INSERT INTO documents (id, content, embedding, metadata)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
    content   = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata  = EXCLUDED.metadata,
    created_at = now()`

// UpsertDocument inserts or replaces a document chunk.
func (q *Queries) UpsertDocument(ctx context.Context, p UpsertDocumentParams) error {
	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx, upsertDocumentSQL, p.ID, p.Content, p.Embedding, meta)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", p.ID, err)
	}
	return nil
}

const searchDocumentsSQL = `
SELECT id, content, metadata, created_at,
       (1 - (embedding <=> $1))::float4 AS similarity
FROM documents
WHERE $2::jsonb IS NULL OR metadata @> $2
ORDER BY embedding <=> $1
LIMIT $3`

// SearchDocuments returns the Limit nearest documents by cosine distance,
// optionally restricted to metadata containing Filter.
func (q *Queries) SearchDocuments(ctx context.Context, p SearchDocumentsParams) ([]Result, error) {
	var filter any
	if p.Filter != nil {
		b, err := marshalMetadata(p.Filter)
		if err != nil {
			return nil, err
		}
		filter = b
	}

	rows, err := q.db.Query(ctx, searchDocumentsSQL, p.Embedding, filter, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r         Result
			meta      []byte
			createdAt time.Time
		)
		if err := rows.Scan(&r.ID, &r.Content, &meta, &createdAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", r.ID, err)
		}
		r.CreatedAt = createdAt
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

const getDocumentSQL = `
SELECT id, content, metadata, created_at FROM documents WHERE id = $1`

// GetDocument fetches one document by ID.
func (q *Queries) GetDocument(ctx context.Context, id string) (Document, error) {
	var (
		d         Document
		meta      []byte
		createdAt time.Time
	)
	err := q.db.QueryRow(ctx, getDocumentSQL, id).Scan(&d.ID, &d.Content, &meta, &createdAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	if err := json.Unmarshal(meta, &d.Metadata); err != nil {
		return Document{}, fmt.Errorf("unmarshal metadata for %s: %w", id, err)
	}
	d.CreatedAt = createdAt
	return d, nil
}

const listDocumentsSQL = `
SELECT id, content, metadata, created_at
FROM documents
WHERE $1::jsonb IS NULL OR metadata @> $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`

// ListDocuments returns documents newest first, optionally filtered.
func (q *Queries) ListDocuments(ctx context.Context, p ListDocumentsParams) ([]Document, error) {
	var filter any
	if p.Filter != nil {
		b, err := marshalMetadata(p.Filter)
		if err != nil {
			return nil, err
		}
		filter = b
	}

	rows, err := q.db.Query(ctx, listDocumentsSQL, filter, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d         Document
			meta      []byte
			createdAt time.Time
		)
		if err := rows.Scan(&d.ID, &d.Content, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("scan list row: %w", err)
		}
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", d.ID, err)
		}
		d.CreatedAt = createdAt
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate list rows: %w", err)
	}
	return docs, nil
}

const countDocumentsSQL = `
SELECT count(*) FROM documents WHERE $1::jsonb IS NULL OR metadata @> $1`

// CountDocuments counts documents, optionally filtered by metadata.
func (q *Queries) CountDocuments(ctx context.Context, filter map[string]any) (int64, error) {
	var arg any
	if filter != nil {
		b, err := marshalMetadata(filter)
		if err != nil {
			return 0, err
		}
		arg = b
	}
	var n int64
	if err := q.db.QueryRow(ctx, countDocumentsSQL, arg).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

const deleteDocumentSQL = `DELETE FROM documents WHERE id = $1`

// DeleteDocument removes one document and reports how many rows went away.
func (q *Queries) DeleteDocument(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteDocumentSQL, id)
	if err != nil {
		return 0, fmt.Errorf("delete document %s: %w", id, err)
	}
	return tag.RowsAffected(), nil
}

const deleteDocumentsByMetadataSQL = `DELETE FROM documents WHERE metadata @> $1`

// DeleteDocumentsByMetadata removes every document whose metadata contains
// filter. Used to drop all chunks of a file before reindexing it.
func (q *Queries) DeleteDocumentsByMetadata(ctx context.Context, filter map[string]any) (int64, error) {
	b, err := marshalMetadata(filter)
	if err != nil {
		return 0, err
	}
	tag, err := q.db.Exec(ctx, deleteDocumentsByMetadataSQL, b)
	if err != nil {
		return 0, fmt.Errorf("delete documents by metadata: %w", err)
	}
	return tag.RowsAffected(), nil
}

const deleteDocumentsByPathPrefixSQL = `
DELETE FROM documents WHERE starts_with(metadata->>'file_path', $1)`

// DeleteDocumentsByPathPrefix removes every document whose file path starts
// with prefix. Used to drop the chunks of a removed directory in one pass.
func (q *Queries) DeleteDocumentsByPathPrefix(ctx context.Context, prefix string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteDocumentsByPathPrefixSQL, prefix)
	if err != nil {
		return 0, fmt.Errorf("delete documents by path prefix: %w", err)
	}
	return tag.RowsAffected(), nil
}
