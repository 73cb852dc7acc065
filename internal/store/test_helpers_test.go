package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/dynq/internal/testutil"
)

// createTestStore creates a new store in a temporary directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createEmployeeTable creates an "employees" table loaded with the shared
// employee fixture.
func createEmployeeTable(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateTable(ctx, "employees", testutil.Employee); err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}
	if err := s.Insert(ctx, "employees", testutil.Employees(t)); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
}
