package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fortuna/footballdb/internal/dataset"
)

func openTestStore(t *testing.T) (*Database, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "football.db")
	db, err := NewDatabase(DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func typedFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	f, err := dataset.ParseCSV("E0.csv", strings.NewReader(
		"Date,HomeTeam,AwayTeam,FTHG,B365>2.5,Referee\n"+
			"15/08/2025,Arsenal,Chelsea,2,1.9,M Oliver\n"+
			"bad,Leeds,Everton,,,\n"))
	require.NoError(t, err)
	_, err = dataset.ParseDateColumn(f, "Date", dataset.ParseDayFirst)
	require.NoError(t, err)
	dataset.InferTypes(f, nil)
	require.NoError(t, f.AppendColumn(dataset.Column{Name: "xG_Home", Type: dataset.TypeReal}, func(i int) any {
		if i == 0 {
			return 1.8
		}
		return nil
	}))
	return f
}

func TestWriteTable_ExplicitSchema(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestStore(t)

	n, err := db.WriteTable(ctx, "E0", typedFrame(t))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	rows, err := db.DB().QueryContext(ctx, `SELECT name, type FROM pragma_table_info('E0') ORDER BY cid`)
	require.NoError(t, err)
	defer rows.Close()

	schema := map[string]string{}
	for rows.Next() {
		var name, typ string
		require.NoError(t, rows.Scan(&name, &typ))
		schema[name] = typ
	}
	require.NoError(t, rows.Err())
	require.Equal(t, map[string]string{
		"Date":     "DATE",
		"HomeTeam": "TEXT",
		"AwayTeam": "TEXT",
		"FTHG":     "INTEGER",
		"B365>2.5": "REAL",
		"Referee":  "TEXT",
		"xG_Home":  "REAL",
	}, schema)

	var date, xgHome any
	require.NoError(t, db.DB().QueryRowContext(ctx,
		`SELECT CAST("Date" AS TEXT), "xG_Home" FROM "E0" WHERE "HomeTeam" = 'Arsenal'`).Scan(&date, &xgHome))
	require.EqualValues(t, "2025-08-15", date)
	require.Equal(t, 1.8, xgHome)

	var nulls int
	require.NoError(t, db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM "E0" WHERE "Date" IS NULL AND "FTHG" IS NULL AND "xG_Home" IS NULL`).Scan(&nulls))
	require.Equal(t, 1, nulls)
}

func TestWriteTable_RefusesExistingTable(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestStore(t)

	_, err := db.WriteTable(ctx, "E0", typedFrame(t))
	require.NoError(t, err)

	_, err = db.WriteTable(ctx, "E0", typedFrame(t))
	require.ErrorIs(t, err, ErrTableExists)

	_, err = db.WriteTable(ctx, "e0", typedFrame(t))
	require.ErrorIs(t, err, ErrTableExists)

	tables, err := db.ListTables(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"E0"}, tables)
}

func TestReset_RemovesExistingStore(t *testing.T) {
	ctx := context.Background()
	db, path := openTestStore(t)
	_, err := db.WriteTable(ctx, "OLD", typedFrame(t))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, os.WriteFile(path+"-journal", nil, 0o644))

	res, err := Reset(ctx, DriverSQLite, path)
	require.NoError(t, err)
	require.True(t, res.Existed)

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(path + "-journal")
	require.True(t, os.IsNotExist(err))
}

func TestReset_MissingStoreIsFine(t *testing.T) {
	res, err := Reset(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "none.db"))
	require.NoError(t, err)
	require.False(t, res.Existed)
}

func TestReset_LockedStore(t *testing.T) {
	ctx := context.Background()
	db, path := openTestStore(t)
	_, err := db.WriteTable(ctx, "E0", typedFrame(t))
	require.NoError(t, err)

	conn, err := db.DB().Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.ExecContext(ctx, "BEGIN EXCLUSIVE")
	require.NoError(t, err)
	defer conn.ExecContext(ctx, "ROLLBACK")

	_, err = Reset(ctx, DriverSQLite, path)
	require.ErrorIs(t, err, ErrStoreLocked)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestReset_UnremovablePath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "football.db")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "keep"), 0o755))

	_, err := Reset(context.Background(), DriverSQLite, dir)
	require.ErrorIs(t, err, ErrStoreLocked)
}

func TestDialects(t *testing.T) {
	_, err := dialectFor("oracle")
	require.Error(t, err)

	pg, err := dialectFor("postgres")
	require.NoError(t, err)
	require.Equal(t, "$2", pg.Placeholder(2))
	require.Equal(t, "DOUBLE PRECISION", pg.SQLType(dataset.TypeReal))
	require.Equal(t, "TEXT", pg.SQLType(dataset.TypeRaw))

	day := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	require.Equal(t, day, pg.Bind(day))
	require.Equal(t, "2025-08-15", sqliteDialect.Bind(day))

	cols := []dataset.Column{{Name: "Date", Type: dataset.TypeDate}, {Name: `Odd"Name`, Type: dataset.TypeText}}
	require.Equal(t, `CREATE TABLE "E0" ("Date" DATE, "Odd""Name" TEXT)`, sqliteDialect.createTableSQL("E0", cols))
	require.Equal(t, `INSERT INTO "E0" ("Date", "Odd""Name") VALUES ($1, $2)`, pg.insertSQL("E0", cols))
}
