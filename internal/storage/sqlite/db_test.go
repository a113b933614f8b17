package sqlite

import (
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestOpen(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "index", "notes.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q; want wal", journalMode)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d; want 1", fk)
	}
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)

	version, err := db.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != 2 {
		t.Errorf("Version() = %d; want 2", version)
	}

	for _, table := range []string{"notes", "note_chunks", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}

	if _, err := db.Exec(`INSERT INTO notes (id, path) VALUES ('n1', 'thermo.md')`); err != nil {
		t.Fatalf("insert note: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO note_chunks (note_id, position, content, embedding_model) VALUES ('n1', 0, 'entropy', 'keyword')`); err != nil {
		t.Fatalf("insert chunk: %v", err)
	}
	if _, err := db.Exec(`DELETE FROM notes WHERE id = 'n1'`); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	var chunks int
	db.QueryRow("SELECT COUNT(*) FROM note_chunks").Scan(&chunks)
	if chunks != 0 {
		t.Errorf("note_chunks = %d after deleting the note; want 0", chunks)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	version, _ := db.Version()
	if version != 2 {
		t.Errorf("Version() = %d; want 2", version)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"001_notes.sql", 1, false},
		{"002_embedding_model.sql", 2, false},
		{"010_something.sql", 10, false},
		{"notaversion.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := parseVersion(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseVersion(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseVersion(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestMigrate_FailedMigrationRollsBack(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "broken.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"001_decks.sql":  {Data: []byte("CREATE TABLE decks (id TEXT PRIMARY KEY);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE cards (id TEXT PRIMARY KEY); CREATE TABL oops;")},
		"README.md":      {Data: []byte("not a migration")},
	}
	if err := db.migrate(fsys); err == nil {
		t.Fatal("migrate() with a broken file should fail")
	}

	version, err := db.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != 1 {
		t.Errorf("Version() = %d; want 1, the good migration only", version)
	}
	var name string
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='cards'").Scan(&name); err == nil {
		t.Error("table from the failed migration was kept")
	}
}

func TestListMigrations_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"010_late.sql":  {Data: []byte("SELECT 1;")},
		"002_mid.sql":   {Data: []byte("SELECT 1;")},
		"001_first.sql": {Data: []byte("SELECT 1;")},
		"notes.sql":     {Data: []byte("SELECT 1;")},
	}
	got, err := listMigrations(fsys)
	if err != nil {
		t.Fatalf("listMigrations() error = %v", err)
	}
	want := []int{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("listMigrations() = %+v; want versions %v", got, want)
	}
	for i, v := range want {
		if got[i].version != v {
			t.Errorf("migration[%d].version = %d; want %d", i, got[i].version, v)
		}
	}
}

// openTestDB is a helper that opens and migrates a test database.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
