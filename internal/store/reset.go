package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lib/pq"
)

// ErrStoreLocked is returned when the previous store cannot be removed because
// another process is using it. A run must not continue after this error.
var ErrStoreLocked = errors.New("store is locked or in use by another process")

// sidecar files SQLite may leave next to the database
var sqliteSidecars = []string{"-wal", "-shm", "-journal"}

// ResetResult describes what Reset removed
type ResetResult struct {
	Existed bool
	Dropped []string
}

// Reset removes every trace of a previous store so the next run starts empty.
//
// For SQLite the database file and its sidecars are deleted. Before deleting,
// the file is probed with a non-blocking exclusive lock so a database held open
// by another writer is reported instead of unlinked underneath it.
// For Postgres every table in the current schema is dropped.
func Reset(ctx context.Context, driver, dsn string) (ResetResult, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return ResetResult{}, err
	}
	if d.name == DriverPostgres {
		return resetPostgres(ctx, dsn)
	}
	return resetSQLite(ctx, dsn)
}

func resetSQLite(ctx context.Context, path string) (ResetResult, error) {
	if path == "" || path == ":memory:" {
		return ResetResult{}, nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ResetResult{}, removeSidecars(path)
		}
		return ResetResult{}, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := probeSQLiteLock(ctx, path); err != nil {
		return ResetResult{}, err
	}

	if err := os.Remove(path); err != nil {
		return ResetResult{}, fmt.Errorf("remove %s: %w: %v", path, ErrStoreLocked, err)
	}
	if err := removeSidecars(path); err != nil {
		return ResetResult{}, err
	}

	return ResetResult{Existed: true}, nil
}

func removeSidecars(path string) error {
	for _, suffix := range sqliteSidecars {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w: %v", path+suffix, ErrStoreLocked, err)
		}
	}
	return nil
}

// probeSQLiteLock takes and releases an exclusive lock on the database.
// Only lock contention is reported; files that are not databases are left for
// os.Remove to deal with.
func probeSQLiteLock(ctx context.Context, path string) error {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		if isBusy(err) {
			return fmt.Errorf("%s: %w", path, ErrStoreLocked)
		}
		return nil
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		if isBusy(err) {
			return fmt.Errorf("%s: %w", path, ErrStoreLocked)
		}
		return nil
	}
	_, _ = conn.ExecContext(ctx, "ROLLBACK")
	return nil
}

func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

func resetPostgres(ctx context.Context, dsn string) (ResetResult, error) {
	db, err := NewDatabase(DriverPostgres, dsn)
	if err != nil {
		return ResetResult{}, err
	}
	defer db.Close()

	tables, err := db.ListTables(ctx)
	if err != nil {
		return ResetResult{}, err
	}
	if len(tables) == 0 {
		return ResetResult{}, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return ResetResult{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SET LOCAL lock_timeout = '5s'"); err != nil {
		return ResetResult{}, fmt.Errorf("set lock timeout: %w", err)
	}

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdentifier(table)+" CASCADE"); err != nil {
			if isLockNotAvailable(err) {
				return ResetResult{}, fmt.Errorf("drop %s: %w", table, ErrStoreLocked)
			}
			return ResetResult{}, fmt.Errorf("drop %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ResetResult{}, fmt.Errorf("commit reset: %w", err)
	}

	return ResetResult{Existed: true, Dropped: tables}, nil
}

func isLockNotAvailable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "55P03"
	}
	return false
}
