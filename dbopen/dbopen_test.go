package dbopen

import (
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

func TestOpen_AppliesPragmas(t *testing.T) {
	db := OpenMemory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fk)
	}
}

func TestOpen_WithSchema(t *testing.T) {
	db := OpenMemory(t, WithSchema("CREATE TABLE items (id INTEGER PRIMARY KEY)"))
	if _, err := db.Exec("INSERT INTO items (id) VALUES (1)"); err != nil {
		t.Fatal(err)
	}
}

func TestOpen_MkdirAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "state.db")
	db, err := Open(path, WithMkdirAll())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Fatal(err)
	}
}
