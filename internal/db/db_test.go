package db

import (
	"path/filepath"
	"testing"
)

func TestNew_CreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "clipper.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	for _, table := range []string{"clips", "_migrations"} {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_WALEnabled(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	var journalMode string
	if err := database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var count int
	if err := db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations error = %v", err)
	}
	if count != 2 {
		t.Errorf("migration count = %d, want 2", count)
	}
}

func TestMarkInterruptedJobs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = db1.Conn().Exec(`
		INSERT INTO clips (id, youtube_url, mode, status, created_at, updated_at) VALUES
		('in-flight', 'https://youtu.be/X', 'short', 'downloading', datetime('now'), datetime('now')),
		('queued', 'https://youtu.be/Y', 'long', 'processing', datetime('now'), datetime('now')),
		('done', 'https://youtu.be/Z', 'short', 'completed', datetime('now'), datetime('now'))
	`)
	if err != nil {
		t.Fatalf("insert clips error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	for _, id := range []string{"in-flight", "queued"} {
		var status, errMsg string
		err := db2.Conn().QueryRow("SELECT status, error FROM clips WHERE id = ?", id).Scan(&status, &errMsg)
		if err != nil {
			t.Fatalf("query clip %s error = %v", id, err)
		}
		if status != "failed" {
			t.Errorf("clip %s status = %s, want failed", id, status)
		}
		if errMsg != InterruptedError {
			t.Errorf("clip %s error = %s, want %q", id, errMsg, InterruptedError)
		}
	}

	var status string
	if err := db2.Conn().QueryRow("SELECT status FROM clips WHERE id = 'done'").Scan(&status); err != nil {
		t.Fatalf("query done clip error = %v", err)
	}
	if status != "completed" {
		t.Errorf("completed clip status = %s, want completed", status)
	}
}
