package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen_EnablesForeignKeys(t *testing.T) {
	for _, path := range []string{MemoryPath, filepath.Join(t.TempDir(), "precifica.db")} {
		database, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}

		var fk int
		if err := database.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
			database.Close()
			t.Fatalf("read foreign_keys pragma: %v", err)
		}
		database.Close()
		if fk != 1 {
			t.Fatalf("foreign_keys=%d for %s, want 1", fk, path)
		}
	}
}
