package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fortuna/footballdb/internal/store"
	"github.com/fortuna/footballdb/internal/xg"
)

// ErrTableNotFound is returned when a query names a table the store does not hold.
var ErrTableNotFound = errors.New("table not found")

// TableSummary is one loaded league table
type TableSummary struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// Coverage counts how many rows of a table received xG figures
type Coverage struct {
	Table     string  `json:"table"`
	Rows      int     `json:"rows"`
	WithXG    int     `json:"with_xg"`
	WithoutXG int     `json:"without_xg"`
	Ratio     float64 `json:"ratio"`
}

// MatchFilter narrows a match query. Zero values mean "no filter".
type MatchFilter struct {
	Team   string
	Date   time.Time
	Limit  int
	Offset int
}

// Row is one match row keyed by column name
type Row map[string]any

// TableRepository handles read access to the loaded league tables
type TableRepository struct {
	db *store.Database
}

// NewTableRepository creates a new table repository
func NewTableRepository(db *store.Database) *TableRepository {
	return &TableRepository{db: db}
}

// ListTables returns every table with its row count
func (r *TableRepository) ListTables(ctx context.Context) ([]TableSummary, error) {
	names, err := r.db.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]TableSummary, 0, len(names))
	for _, name := range names {
		var n int
		query := "SELECT COUNT(*) FROM " + store.QuoteIdentifier(name)
		if err := r.db.DB().QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting rows in %s: %w", name, err)
		}
		summaries = append(summaries, TableSummary{Name: name, Rows: n})
	}

	return summaries, nil
}

// QueryMatches returns rows of a league table ordered by date and home team
func (r *TableRepository) QueryMatches(ctx context.Context, table string, filter MatchFilter) ([]Row, error) {
	if err := r.requireTable(ctx, table); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.Team != "" {
		where = append(where, fmt.Sprintf("(%s = %s OR %s = %s)",
			store.QuoteIdentifier(xg.ColHomeTeam), r.db.Placeholder(len(args)+1),
			store.QuoteIdentifier(xg.ColAwayTeam), r.db.Placeholder(len(args)+2)))
		args = append(args, filter.Team, filter.Team)
	}
	if !filter.Date.IsZero() {
		where = append(where, fmt.Sprintf("%s = %s", store.QuoteIdentifier(xg.ColDate), r.db.Placeholder(len(args)+1)))
		args = append(args, r.db.Bind(filter.Date))
	}

	query := "SELECT * FROM " + store.QuoteIdentifier(table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s, %s", store.QuoteIdentifier(xg.ColDate), store.QuoteIdentifier(xg.ColHomeTeam))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, max(filter.Offset, 0))
	}

	rows, err := r.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// XGCoverage reports how many rows of the table carry an xG value
func (r *TableRepository) XGCoverage(ctx context.Context, table string) (*Coverage, error) {
	if err := r.requireTable(ctx, table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT COUNT(*), COUNT(%s) FROM %s",
		store.QuoteIdentifier(xg.ColXGHome), store.QuoteIdentifier(table))

	cov := &Coverage{Table: table}
	if err := r.db.DB().QueryRowContext(ctx, query).Scan(&cov.Rows, &cov.WithXG); err != nil {
		return nil, fmt.Errorf("querying coverage for %s: %w", table, err)
	}
	cov.WithoutXG = cov.Rows - cov.WithXG
	if cov.Rows > 0 {
		cov.Ratio = float64(cov.WithXG) / float64(cov.Rows)
	}

	return cov, nil
}

func (r *TableRepository) requireTable(ctx context.Context, table string) error {
	exists, err := r.db.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	return nil
}

// normalizeValue turns driver values into JSON-friendly ones
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return v
	}
}
