package collection

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/jackc/pgx/v5/pgtype"
	"google.golang.org/genai"

	"github.com/strataworks/strata/internal/level"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	embedErr    error
	returnEmpty bool
	embeddings  []float32
	delay       time.Duration
	callCount   int
	lastInput   string
	lastOptions any
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	m.lastOptions = req.Options
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastInput = req.Input[0].Content[0].Text
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{Embeddings: []*ai.Embedding{{Embedding: []float32{}}}}, nil
	}
	embeddings := m.embeddings
	if embeddings == nil {
		embeddings = []float32{0.1, 0.2, 0.3}
	}
	return &ai.EmbedResponse{Embeddings: []*ai.Embedding{{Embedding: embeddings}}}, nil
}

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	searchErr     error
	upsertErr     error
	countErr      error
	searchResults []SearchDocumentsRow
	countResult   int64

	searchCalls      int
	upsertCalls      int
	countCalls       int
	lastSearchParams SearchDocumentsParams
	lastUpsertParams UpsertDocumentParams
	lastCountLevel   int16
}

func (m *mockQuerier) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	m.searchCalls++
	m.lastSearchParams = arg
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResults, nil
}

func (m *mockQuerier) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	m.upsertCalls++
	m.lastUpsertParams = arg
	return m.upsertErr
}

func (m *mockQuerier) CountDocuments(ctx context.Context, lvl int16) (int64, error) {
	m.countCalls++
	m.lastCountLevel = lvl
	return m.countResult, m.countErr
}

func TestStore_Add(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{embeddings: []float32{0.5, 0.6, 0.7}}
	store := NewStore(querier, embedder, nil)

	doc := Document{
		ID:      "doc-1",
		Content: "PLC ladder logic reference",
		Metadata: map[string]string{
			"source": "plc-manual.pdf",
		},
		CreatedAt: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}

	if err := store.Add(context.Background(), level.Field, doc); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if embedder.callCount != 1 {
		t.Errorf("expected 1 embed call, got %d", embedder.callCount)
	}
	if embedder.lastInput != doc.Content {
		t.Errorf("embedder received %q, want document content", embedder.lastInput)
	}
	if querier.upsertCalls != 1 {
		t.Fatalf("expected 1 upsert call, got %d", querier.upsertCalls)
	}

	params := querier.lastUpsertParams
	if params.ID != doc.ID {
		t.Errorf("upsert ID = %q, want %q", params.ID, doc.ID)
	}
	if params.Level != int16(level.Field) {
		t.Errorf("upsert level = %d, want %d", params.Level, level.Field)
	}
	if len(params.Embedding.Slice()) != 3 {
		t.Errorf("expected 3-dimension embedding, got %d", len(params.Embedding.Slice()))
	}

	var metadata map[string]string
	if err := json.Unmarshal(params.Metadata, &metadata); err != nil {
		t.Fatalf("unmarshaling metadata: %v", err)
	}
	if metadata["source"] != "plc-manual.pdf" {
		t.Error("metadata not preserved through upsert")
	}
}

// The schema column is vector(768) while gemini-embedding-001 defaults
// to 3072 dimensions, so every embed request must ask for truncation or
// Postgres rejects the row.
func TestStore_EmbedRequestsSchemaDimension(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{}
	store := NewStore(querier, embedder, nil)

	doc := Document{ID: "doc-1", Content: "vibration sensor thresholds"}
	if err := store.Add(context.Background(), level.Field, doc); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	cfg, ok := embedder.lastOptions.(*genai.EmbedContentConfig)
	if !ok {
		t.Fatalf("embed options = %T, want *genai.EmbedContentConfig", embedder.lastOptions)
	}
	if cfg.OutputDimensionality == nil || *cfg.OutputDimensionality != VectorDimension {
		t.Errorf("OutputDimensionality = %v, want %d", cfg.OutputDimensionality, VectorDimension)
	}

	// The query path embeds through the same helper and must carry the
	// same truncation request.
	embedder.lastOptions = nil
	if _, err := store.Collection(level.Field).Query(context.Background(), "vibration", 3); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	cfg, ok = embedder.lastOptions.(*genai.EmbedContentConfig)
	if !ok {
		t.Fatalf("query embed options = %T, want *genai.EmbedContentConfig", embedder.lastOptions)
	}
	if cfg.OutputDimensionality == nil || *cfg.OutputDimensionality != VectorDimension {
		t.Errorf("query OutputDimensionality = %v, want %d", cfg.OutputDimensionality, VectorDimension)
	}
}

func TestStore_Add_Validation(t *testing.T) {
	tests := []struct {
		name  string
		level level.Level
		doc   Document
	}{
		{
			name:  "invalid level",
			level: 9,
			doc:   Document{ID: "d", Content: "c"},
		},
		{
			name:  "empty ID",
			level: level.Field,
			doc:   Document{Content: "c"},
		},
		{
			name:  "empty content",
			level: level.Field,
			doc:   Document{ID: "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			querier := &mockQuerier{}
			store := NewStore(querier, &mockEmbedder{}, nil)

			if err := store.Add(context.Background(), tt.level, tt.doc); err == nil {
				t.Fatal("expected error, got nil")
			}
			if querier.upsertCalls > 0 {
				t.Error("upsert should not be called on validation failure")
			}
		})
	}
}

func TestStore_Add_EmbedError(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{embedErr: errors.New("embedding service down")}
	store := NewStore(querier, embedder, nil)

	err := store.Add(context.Background(), level.Field, Document{ID: "d", Content: "c"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "embedding") {
		t.Errorf("unexpected error: %v", err)
	}
	if querier.upsertCalls > 0 {
		t.Error("upsert should not be called when embedding fails")
	}
}

func TestLevelCollection_Query(t *testing.T) {
	metadataJSON := []byte(`{"source":"scada-runbook.md"}`)
	querier := &mockQuerier{
		searchResults: []SearchDocumentsRow{
			{
				ID:       "doc-a",
				Content:  "Alarm acknowledgment procedure",
				Metadata: metadataJSON,
				CreatedAt: pgtype.Timestamptz{
					Time:  time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
					Valid: true,
				},
				Similarity: 0.91,
			},
			{
				ID:         "doc-b",
				Content:    "HMI screen layout standard",
				Metadata:   metadataJSON,
				Similarity: 0.74,
			},
		},
	}
	store := NewStore(querier, &mockEmbedder{}, nil)

	coll := store.Collection(level.Supervisory)
	results, err := coll.Query(context.Background(), "alarm handling", 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "doc-a" || results[0].Score != 0.91 {
		t.Errorf("first result mismatch: %+v", results[0])
	}
	if results[0].Metadata["source"] != "scada-runbook.md" {
		t.Error("metadata not parsed")
	}

	if querier.lastSearchParams.Level != int16(level.Supervisory) {
		t.Errorf("search scoped to level %d, want %d", querier.lastSearchParams.Level, level.Supervisory)
	}
	if querier.lastSearchParams.ResultLimit != 5 {
		t.Errorf("search limit = %d, want 5", querier.lastSearchParams.ResultLimit)
	}
}

func TestLevelCollection_Query_Unavailable(t *testing.T) {
	querier := &mockQuerier{searchErr: errors.New("connection refused")}
	store := NewStore(querier, &mockEmbedder{}, nil)

	coll := store.Collection(level.Field)
	_, err := coll.Query(context.Background(), "sensor calibration", 3)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got: %v", err)
	}
}

func TestLevelCollection_Query_EmbedFailureIsUnavailable(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{embedErr: errors.New("quota exceeded")}
	store := NewStore(querier, embedder, nil)

	coll := store.Collection(level.Planning)
	_, err := coll.Query(context.Background(), "schedule", 3)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got: %v", err)
	}
	if querier.searchCalls > 0 {
		t.Error("search should not run when embedding fails")
	}
}

func TestLevelCollection_Query_Cancellation(t *testing.T) {
	querier := &mockQuerier{}
	embedder := &mockEmbedder{delay: 5 * time.Second}
	store := NewStore(querier, embedder, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	coll := store.Collection(level.Field)
	_, err := coll.Query(ctx, "slow query", 3)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got: %v", err)
	}
}

func TestLevelCollection_Query_MetadataParseError(t *testing.T) {
	querier := &mockQuerier{
		searchResults: []SearchDocumentsRow{
			{ID: "doc-1", Content: "text", Metadata: []byte(`{broken`), Similarity: 0.8},
		},
	}
	store := NewStore(querier, &mockEmbedder{}, nil)

	results, err := store.Collection(level.Field).Query(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Query should tolerate bad metadata: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(results[0].Metadata) != 0 {
		t.Error("metadata should be empty on parse error")
	}
}

func TestStore_Count(t *testing.T) {
	querier := &mockQuerier{countResult: 42}
	store := NewStore(querier, &mockEmbedder{}, nil)

	count, err := store.Count(context.Background(), level.Management)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
	if querier.lastCountLevel != int16(level.Management) {
		t.Errorf("count scoped to level %d, want %d", querier.lastCountLevel, level.Management)
	}

	if _, err := store.Count(context.Background(), 0); !errors.Is(err, level.ErrInvalidLevel) {
		t.Errorf("expected ErrInvalidLevel for level 0, got: %v", err)
	}
}
