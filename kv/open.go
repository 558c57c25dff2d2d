package kv

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// busyTimeout is the SQLite busy_timeout in milliseconds. Several overlayd
// processes may share one state file.
const busyTimeout = 5_000

// openDB opens the database at path in WAL mode and ensures the kv table.
// ":memory:" opens a private in-memory database on a single connection.
func openDB(path string) (*sql.DB, error) {
	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if memory {
		db.SetMaxOpenConns(1)
	}
	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout),
		"PRAGMA synchronous = NORMAL",
		Schema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", strings.TrimSpace(strings.SplitN(stmt, "\n", 2)[0]), err)
		}
	}
	return db, nil
}

// isBusy reports whether err is a lock conflict worth retrying.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// exec runs a write, retrying lock conflicts with a linear backoff.
func exec(ctx context.Context, db *sql.DB, query string, args ...any) error {
	const attempts = 3
	for i := 1; ; i++ {
		_, err := db.ExecContext(ctx, query, args...)
		if err == nil || !isBusy(err) || i == attempts {
			return err
		}
		t := time.NewTimer(time.Duration(i) * 100 * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
