package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/fortuna/footballdb/internal/dataset"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect isolates the SQL differences between the supported drivers
type dialect struct {
	name        string
	types       map[dataset.ColumnType]string
	positional  bool
	tableExists string
	listTables  string
	formatDates bool
}

var sqliteDialect = dialect{
	name: DriverSQLite,
	types: map[dataset.ColumnType]string{
		dataset.TypeInteger: "INTEGER",
		dataset.TypeReal:    "REAL",
		dataset.TypeText:    "TEXT",
		dataset.TypeDate:    "DATE",
	},
	tableExists: `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`,
	listTables:  `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
	// SQLite has no date type; dates are stored as ISO text so they sort and compare.
	formatDates: true,
}

var postgresDialect = dialect{
	name: DriverPostgres,
	types: map[dataset.ColumnType]string{
		dataset.TypeInteger: "BIGINT",
		dataset.TypeReal:    "DOUBLE PRECISION",
		dataset.TypeText:    "TEXT",
		dataset.TypeDate:    "DATE",
	},
	positional: true,

	tableExists: `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1`,
	listTables: `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name`,
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite3", "":
		return sqliteDialect, nil
	case DriverPostgres, "postgresql":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// IsFileBacked reports whether driver keeps the store in a single local file.
func IsFileBacked(driver string) bool {
	d, err := dialectFor(driver)
	return err == nil && d.name == DriverSQLite
}

// Placeholder returns the bind parameter for the 1-based position n
func (d dialect) Placeholder(n int) string {
	if d.positional {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// SQLType maps a frame column type onto the dialect's column type.
// Untyped columns default to text.
func (d dialect) SQLType(t dataset.ColumnType) string {
	if s, ok := d.types[t]; ok {
		return s
	}
	return d.types[dataset.TypeText]
}

// Bind converts a frame cell into a driver argument
func (d dialect) Bind(v any) any {
	if t, ok := v.(time.Time); ok && d.formatDates {
		return t.Format("2006-01-02")
	}
	return v
}

// QuoteIdentifier quotes a table or column name. CSV headers such as
// "B365>2.5" or "Unnamed: 4" are valid once quoted.
func QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d dialect) createTableSQL(table string, cols []dataset.Column) string {
	defs := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = fmt.Sprintf("%s %s", QuoteIdentifier(col.Name), d.SQLType(col.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdentifier(table), strings.Join(defs, ", "))
}

func (d dialect) insertSQL(table string, cols []dataset.Column) string {
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, col := range cols {
		names[i] = QuoteIdentifier(col.Name)
		params[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdentifier(table), strings.Join(names, ", "), strings.Join(params, ", "))
}
