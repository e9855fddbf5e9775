//go:build integration
// +build integration

package testutil

import (
	"context"
	"testing"
)

// TestSetupTestDB_Integration validates the test infrastructure itself:
// the container starts, pgvector is installed, and the documents schema
// is migrated.
//
// Run with: go test -tags=integration ./internal/testutil -v
func TestSetupTestDB_Integration(t *testing.T) {
	dbContainer, cleanup := SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := dbContainer.Pool.Ping(ctx); err != nil {
		t.Fatalf("Pool.Ping() unexpected error: %v", err)
	}

	var hasExtension bool
	err := dbContainer.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&hasExtension)
	if err != nil {
		t.Fatalf("QueryRow(vector extension check) unexpected error: %v", err)
	}
	if !hasExtension {
		t.Error("pgvector extension installed = false, want true")
	}

	var exists bool
	err = dbContainer.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = 'documents')").Scan(&exists)
	if err != nil {
		t.Fatalf("QueryRow(documents table check) unexpected error: %v", err)
	}
	if !exists {
		t.Error("documents table exists = false, want true")
	}

	var levelCheck int
	err = dbContainer.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM documents WHERE level BETWEEN 1 AND 4").Scan(&levelCheck)
	if err != nil {
		t.Fatalf("QueryRow(level range query) unexpected error: %v", err)
	}
	if levelCheck != 0 {
		t.Errorf("fresh database has %d documents, want 0", levelCheck)
	}
}
