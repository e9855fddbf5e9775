package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/strataworks/strata/internal/level"
)

// queryTimeout bounds a single vector search to keep a slow backend from
// blocking the per-level fan-out.
const queryTimeout = 10 * time.Second

// VectorDimension must match the vector(768) column in the documents
// schema. gemini-embedding-001 outputs 3072 dimensions by default, so
// every embed request asks for truncation to this size.
const VectorDimension int32 = 768

// Document is a knowledge document as stored in a level's collection.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// SearchDocumentsParams holds the arguments for a per-level vector search.
type SearchDocumentsParams struct {
	Level          int16
	QueryEmbedding pgvector.Vector
	ResultLimit    int32
}

// SearchDocumentsRow is one row of a vector search result.
type SearchDocumentsRow struct {
	ID         string
	Content    string
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
	Similarity float64
}

// UpsertDocumentParams holds the arguments for inserting or updating a
// document in a level's collection.
type UpsertDocumentParams struct {
	ID        string
	Level     int16
	Content   string
	Embedding pgvector.Vector
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
}

// Querier defines the database operations the store depends on.
// The interface lives with its consumer so tests can substitute a mock
// without a database.
type Querier interface {
	SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error)
	UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error
	CountDocuments(ctx context.Context, lvl int16) (int64, error)
}

// DBTX is the subset of pgxpool.Pool used by Queries.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Queries implements Querier over a pgx connection pool.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries instance over the given connection pool.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const searchDocumentsSQL = `
SELECT id, content, metadata, created_at,
       1 - (embedding <=> $2) AS similarity
FROM documents
WHERE level = $1
ORDER BY embedding <=> $2
LIMIT $3
`

// SearchDocuments runs a cosine-similarity search scoped to one level.
func (q *Queries) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	rows, err := q.db.Query(ctx, searchDocumentsSQL, arg.Level, arg.QueryEmbedding, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchDocumentsRow
	for rows.Next() {
		var row SearchDocumentsRow
		if err := rows.Scan(&row.ID, &row.Content, &row.Metadata, &row.CreatedAt, &row.Similarity); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

const upsertDocumentSQL = `
INSERT INTO documents (id, level, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
ON CONFLICT (id) DO UPDATE SET
    level = EXCLUDED.level,
    content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata
`

// UpsertDocument inserts or updates a document.
func (q *Queries) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	_, err := q.db.Exec(ctx, upsertDocumentSQL,
		arg.ID, arg.Level, arg.Content, arg.Embedding, arg.Metadata, arg.CreatedAt)
	return err
}

const countDocumentsSQL = `SELECT COUNT(*) FROM documents WHERE level = $1`

// CountDocuments counts the documents stored at one level.
func (q *Queries) CountDocuments(ctx context.Context, lvl int16) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countDocumentsSQL, lvl).Scan(&count)
	return count, err
}

// Store manages the per-level document collections in PostgreSQL with
// pgvector similarity search. Query text is embedded with the configured
// embedder before searching.
//
// Store is safe for concurrent use.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a Store. A nil logger falls back to slog.Default().
func NewStore(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// Collection returns the read-only query handle for one level's
// collection.
func (s *Store) Collection(l level.Level) Collection {
	return &levelCollection{store: s, level: l}
}

// Registry builds the level-to-collection registry over all four levels.
// Called once at startup; the returned registry is immutable.
func (s *Store) Registry() *Registry {
	collections := make(map[level.Level]Collection, len(level.All()))
	for _, l := range level.All() {
		collections[l] = s.Collection(l)
	}
	return NewRegistry(collections)
}

// Add writes a document into exactly one level's collection. Documents
// are never duplicated into lower levels; access scoping happens at
// query time. The content is embedded with the configured embedder.
func (s *Store) Add(ctx context.Context, l level.Level, doc Document) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if doc.ID == "" {
		return fmt.Errorf("document ID must not be empty")
	}
	if doc.Content == "" {
		return fmt.Errorf("document content must not be empty")
	}

	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	err = s.queries.UpsertDocument(ctx, UpsertDocumentParams{
		ID:        doc.ID,
		Level:     int16(l),
		Content:   doc.Content,
		Embedding: embedding,
		Metadata:  metadataJSON,
		CreatedAt: pgtype.Timestamptz{Time: doc.CreatedAt, Valid: !doc.CreatedAt.IsZero()},
	})
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("added document", "id", doc.ID, "level", int(l), "content_length", len(doc.Content))
	return nil
}

// Count returns the number of documents stored at one level.
func (s *Store) Count(ctx context.Context, l level.Level) (int, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}
	count, err := s.queries.CountDocuments(ctx, int16(l))
	if err != nil {
		return 0, fmt.Errorf("counting level %d documents: %w", int(l), err)
	}
	return int(count), nil
}

// embed generates the embedding vector for text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding returned")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// levelCollection adapts the shared store to the single-level Collection
// interface consumed by the retrieval engine.
type levelCollection struct {
	store *Store
	level level.Level
}

// Query embeds the query text and runs a similarity search scoped to
// this collection's level. I/O failures are reported as ErrUnavailable
// so callers can distinguish a broken level from an empty one.
func (c *levelCollection) Query(ctx context.Context, text string, k int) ([]Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	embedding, err := c.store.embed(queryCtx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: level %d: %w", ErrUnavailable, int(c.level), err)
	}

	rows, err := c.store.queries.SearchDocuments(queryCtx, SearchDocumentsParams{
		Level:          int16(c.level),
		QueryEmbedding: embedding,
		ResultLimit:    int32(k), // #nosec G115 -- k validated positive by the engine
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: level %d: search timeout: %w", ErrUnavailable, int(c.level), err)
		}
		return nil, fmt.Errorf("%w: level %d: %w", ErrUnavailable, int(c.level), err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]string
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			c.store.logger.Warn("failed to parse metadata", "document_id", row.ID, "error", err)
			metadata = make(map[string]string)
		}

		var createdAt time.Time
		if row.CreatedAt.Valid {
			createdAt = row.CreatedAt.Time
		}

		results = append(results, Result{
			ID:        row.ID,
			Excerpt:   row.Content,
			Score:     row.Similarity,
			Metadata:  metadata,
			CreatedAt: createdAt,
		})
	}
	return results, nil
}
