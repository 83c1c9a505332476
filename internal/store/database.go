package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/fortuna/footballdb/internal/dataset"
)

// ErrTableExists is returned when a table is written twice in one store.
var ErrTableExists = errors.New("table already exists")

// Database represents the relational store holding one table per league
type Database struct {
	conn    *sql.DB
	dsn     string
	dialect dialect
}

// NewDatabase opens the store. For SQLite the dsn is the database file path.
func NewDatabase(driver, dsn string) (*Database, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if d.name == DriverSQLite {
		// One writer, and ":memory:" databases must not be split across connections.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		conn:    db,
		dsn:     dsn,
		dialect: d,
	}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB for queries
func (db *Database) DB() *sql.DB {
	return db.conn
}

// Driver returns the driver name the store was opened with
func (db *Database) Driver() string {
	return db.dialect.name
}

// DSN returns the connection string, the file path for SQLite
func (db *Database) DSN() string {
	return db.dsn
}

// Placeholder returns the bind parameter for position n (1-based)
func (db *Database) Placeholder(n int) string {
	return db.dialect.Placeholder(n)
}

// Bind converts a Go value into the form the store compares against
func (db *Database) Bind(v any) any {
	return db.dialect.Bind(v)
}

// HealthCheck performs a health check on the database
func (db *Database) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	return db.conn.PingContext(ctx)
}

// TableExists reports whether a table with this name exists.
// SQLite compares names case-insensitively, as it resolves identifiers.
func (db *Database) TableExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, db.dialect.tableExists, name).Scan(&n); err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return n > 0, nil
}

// ListTables returns the user tables in name order
func (db *Database) ListTables(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, db.dialect.listTables)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// WriteTable creates a new table from the frame's columns and inserts all of
// its rows in a single transaction. It never replaces an existing table.
func (db *Database) WriteTable(ctx context.Context, name string, frame *dataset.Frame) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("empty table name")
	}
	if len(frame.Columns) == 0 {
		return 0, fmt.Errorf("table %s: no columns", name)
	}

	exists, err := db.TableExists(ctx, name)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("table %s: %w", name, ErrTableExists)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, db.dialect.createTableSQL(name, frame.Columns)); err != nil {
		return 0, fmt.Errorf("create table %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, db.dialect.insertSQL(name, frame.Columns))
	if err != nil {
		return 0, fmt.Errorf("prepare insert into %s: %w", name, err)
	}
	defer stmt.Close()

	args := make([]any, len(frame.Columns))
	for i, row := range frame.Rows {
		for j, v := range row {
			args[j] = db.dialect.Bind(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert row %d into %s: %w", i+1, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", name, err)
	}

	return len(frame.Rows), nil
}
