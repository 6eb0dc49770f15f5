package db

import (
	"path/filepath"
	"testing"
)

func TestOpenSQLite_SetsBusyTimeoutAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	gdb, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("DB() failed: %v", err)
	}
	defer sqlDB.Close()

	var timeout int
	if err := sqlDB.QueryRow(`PRAGMA busy_timeout;`).Scan(&timeout); err != nil {
		t.Fatalf("query busy_timeout failed: %v", err)
	}
	if timeout < 5000 {
		t.Fatalf("expected busy_timeout >= 5000, got %d", timeout)
	}

	if !gdb.Migrator().HasTable(&ProjectHistory{}) {
		t.Fatalf("expected project_history table to exist")
	}
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
