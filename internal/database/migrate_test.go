package database

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

// migrationsDir returns the absolute path to db/migrations/ from the project root.
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	// thisFile is internal/database/migrate_test.go, project root is two dirs up.
	projectRoot := filepath.Join(filepath.Dir(thisFile), "..", "..")
	dir := filepath.Join(projectRoot, "db", "migrations")
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("migrations directory not found at %s: %v", dir, err)
	}
	return dir
}

// TestMigrations_UpDownPairs ensures every .up.sql has a matching .down.sql.
func TestMigrations_UpDownPairs(t *testing.T) {
	dir := migrationsDir(t)
	upFiles, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		t.Fatalf("globbing up files: %v", err)
	}
	if len(upFiles) == 0 {
		t.Fatal("no migration files found")
	}

	for _, up := range upFiles {
		down := strings.Replace(up, ".up.sql", ".down.sql", 1)
		if _, err := os.Stat(down); err != nil {
			t.Errorf("missing down migration for %s", filepath.Base(up))
		}
	}
}

// TestMigrations_Naming checks the NNNNNN_name.{up,down}.sql layout
// golang-migrate expects and that versions are not reused.
func TestMigrations_Naming(t *testing.T) {
	dir := migrationsDir(t)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}

	pattern := regexp.MustCompile(`^(\d{6})_[a-z0-9_]+\.(up|down)\.sql$`)
	seen := map[string]string{}
	for _, e := range entries {
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			t.Errorf("unexpected file in migrations directory: %s", e.Name())
			continue
		}
		key := m[1] + "." + m[2]
		if prev, ok := seen[key]; ok {
			t.Errorf("version %s used by both %s and %s", m[1], prev, e.Name())
		}
		seen[key] = e.Name()
	}
}

// ingestionColumns must match what catalog's ingestion repository reads and
// writes.
var ingestionColumns = []string{
	"id", "source_url", "category", "public_id", "succeeded", "bytes", "error", "created_at",
}

// TestMigrations_IngestionsSchema verifies the ingestions table defines every
// column the repository queries.
func TestMigrations_IngestionsSchema(t *testing.T) {
	dir := migrationsDir(t)
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		t.Fatalf("globbing migration files: %v", err)
	}

	var schema string
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("reading %s: %v", f, err)
		}
		if strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS ingestions") {
			schema = string(data)
		}
	}
	if schema == "" {
		t.Fatal("no migration creates the ingestions table")
	}

	for _, col := range ingestionColumns {
		colPattern := regexp.MustCompile(`(?m)^\s*` + col + `\s+[A-Z]`)
		if !colPattern.MatchString(schema) {
			t.Errorf("ingestions table is missing column %s", col)
		}
	}
}
