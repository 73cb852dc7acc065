package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/testutil"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='dynq_tables'").Scan(&name)
	if err != nil {
		t.Errorf("catalog not found after idempotent opens: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	testCases := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.pragma(tc.name)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.expected {
				t.Errorf("%s = %q, want %q", tc.name, got, tc.expected)
			}
		})
	}
}

func TestMigration_RecordIndex(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_dynq_tables_record'").Scan(&name)
	if err != nil {
		t.Errorf("record index missing: %v", err)
	}
}

func TestCreateTable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.CreateTable(ctx, "employees", testutil.Employee); err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}
	// Same signature again is a no-op.
	if err := s.CreateTable(ctx, "employees", testutil.Employee); err != nil {
		t.Fatalf("repeated CreateTable() failed: %v", err)
	}

	other := schema.MustRecordType("Employee", schema.Field{Name: "Name", Type: schema.String})
	if err := s.CreateTable(ctx, "employees", other); err == nil {
		t.Error("expected error for a different signature")
	}

	tables, err := s.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables() failed: %v", err)
	}
	if len(tables) != 1 || tables[0].Name != "employees" || tables[0].Record != "Employee" {
		t.Errorf("unexpected catalog: %+v", tables)
	}
	if tables[0].Signature != testutil.Employee.Signature() {
		t.Errorf("signature = %q, want %q", tables[0].Signature, testutil.Employee.Signature())
	}
}

func TestCreateTable_Rejects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	nested := schema.MustRecordType("Order",
		schema.Field{Name: "ID", Type: schema.Int},
		schema.Field{Name: "Lines", Type: schema.ListOf(schema.String)},
	)

	testCases := []struct {
		name  string
		table string
		rt    *schema.RecordType
	}{
		{"empty name", "", testutil.Employee},
		{"reserved prefix", "dynq_mine", testutil.Employee},
		{"list field", "orders", nested},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.CreateTable(ctx, tc.table, tc.rt); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRecordType_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s1.CreateTable(ctx, "employees", testutil.Employee); err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	rt, err := s2.RecordType(ctx, "employees")
	if err != nil {
		t.Fatalf("RecordType() failed: %v", err)
	}
	if rt.Name != "Employee" || rt.Signature() != testutil.Employee.Signature() {
		t.Errorf("reloaded %s{%s}, want Employee{%s}", rt.Name, rt.Signature(), testutil.Employee.Signature())
	}

	again, err := s2.RecordType(ctx, "employees")
	if err != nil {
		t.Fatalf("RecordType() failed: %v", err)
	}
	if again != rt {
		t.Error("record type should be cached per table")
	}
}

func TestRecordType_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.RecordType(context.Background(), "missing")
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

func TestDropTable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createEmployeeTable(t, s)

	if err := s.DropTable(ctx, "employees"); err != nil {
		t.Fatalf("DropTable() failed: %v", err)
	}
	if _, err := s.RecordType(ctx, "employees"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound after drop, got %v", err)
	}
	if err := s.DropTable(ctx, "employees"); err != nil {
		t.Errorf("dropping a missing table should not error: %v", err)
	}
}

func TestTablesFor(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"staff_b", "staff_a"} {
		if err := s.CreateTable(ctx, name, testutil.Employee); err != nil {
			t.Fatalf("CreateTable(%s) failed: %v", name, err)
		}
	}

	tables, err := s.TablesFor(ctx, "Employee")
	if err != nil {
		t.Fatalf("TablesFor() failed: %v", err)
	}
	if len(tables) != 2 || tables[0].Name != "staff_a" || tables[1].Name != "staff_b" {
		t.Errorf("unexpected tables: %+v", tables)
	}

	none, err := s.TablesFor(ctx, "Nope")
	if err != nil {
		t.Fatalf("TablesFor() failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

func TestInsert_RecordMismatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createEmployeeTable(t, s)

	other := schema.MustRecordType("Other", schema.Field{Name: "Name", Type: schema.String})
	if err := s.Insert(ctx, "employees", []schema.Row{schema.NewRow(other)}); err == nil {
		t.Error("expected error for a row of another record type")
	}
	if err := s.Insert(ctx, "missing", nil); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}
