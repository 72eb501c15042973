// SPDX-License-Identifier: MPL-2.0

package sqlitemigrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func count(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query).Scan(&n); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return n
}

func TestApply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openInMemoryDB(t)
	migrations := fstest.MapFS{
		"migrations/001_items.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE items(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE items;")},
		"migrations/002_tags.sql":  {Data: []byte("CREATE TABLE tags(id TEXT PRIMARY KEY);")},
		"migrations/README.md":     {Data: []byte("ignored")},
	}

	if err := Apply(ctx, db, migrations, "migrations"); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := Apply(ctx, db, migrations, "migrations"); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}

	if got := count(t, db, "SELECT COUNT(*) FROM schema_migrations"); got != 2 {
		t.Errorf("recorded migrations = %d, want 2", got)
	}
	if got := count(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('items', 'tags')"); got != 2 {
		t.Errorf("created tables = %d, want 2", got)
	}
}

func TestApply_FailedMigrationIsNotRecorded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openInMemoryDB(t)
	bad := fstest.MapFS{"001_bad.sql": {Data: []byte("CREAT TABLE things(id INT);")}}

	if err := Apply(ctx, db, bad, ""); err == nil {
		t.Fatal("Apply() with invalid SQL succeeded")
	}
	if got := count(t, db, "SELECT COUNT(*) FROM schema_migrations"); got != 0 {
		t.Errorf("recorded migrations = %d, want 0", got)
	}

	good := fstest.MapFS{"001_bad.sql": {Data: []byte("CREATE TABLE things(id INT);")}}
	if err := Apply(ctx, db, good, ""); err != nil {
		t.Fatalf("Apply() after fix error = %v", err)
	}
	if got := count(t, db, "SELECT COUNT(*) FROM schema_migrations"); got != 1 {
		t.Errorf("recorded migrations = %d, want 1", got)
	}
}

func TestApply_NilDB(t *testing.T) {
	t.Parallel()

	if err := Apply(context.Background(), nil, fstest.MapFS{}, ""); err != ErrNilDB {
		t.Errorf("Apply(nil) error = %v, want ErrNilDB", err)
	}
}

func TestExtractUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "no markers", content: "CREATE TABLE a(x);", want: "CREATE TABLE a(x);"},
		{name: "up only", content: "-- +migrate Up\nCREATE TABLE a(x);", want: "\nCREATE TABLE a(x);"},
		{name: "up and down", content: "-- +migrate Up\nCREATE TABLE a(x);\n-- +migrate Down\nDROP TABLE a;", want: "\nCREATE TABLE a(x);\n"},
	}
	for _, tt := range tests {
		if got := ExtractUp(tt.content); got != tt.want {
			t.Errorf("%s: ExtractUp() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
