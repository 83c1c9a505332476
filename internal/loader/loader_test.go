package loader

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/footballdb/internal/reconciliation"
	"github.com/fortuna/footballdb/internal/store"
)

const (
	premierLeague = "Div,Date,Time,HomeTeam,AwayTeam,FTHG,FTAG,FTR,B365H\n" +
		"E0,15/08/2025,20:00,Arsenal,Chelsea,2,1,H,1.85\n" +
		"E0,16/08/2025,15:00,Leeds,Everton,0,0,D,2.40\n" +
		"E0,not-a-date,15:00,Fulham,Brentford,1,1,D,2.10\n"

	laLiga = "Div,Date,HomeTeam,AwayTeam,FTHG,FTAG\n" +
		"SP1,17/08/25,Barcelona,Getafe,3,0\n" +
		"SP1,17/08/25,Barcelona,Getafe,3,0\n"

	xgData = "League,Date,HomeTeam,AwayTeam,FTHG,FTAG,xG_Home,xG_Away\n" +
		"EPL,2025-08-15,Arsenal,Chelsea,2,1,1.8,0.9\n" +
		"La_liga,2025-08-17,Barcelona,Getafe,3,0,2.6,0.4\n"
)

type fixture struct {
	rawDir string
	store  string
}

func newFixture(t *testing.T, files map[string]string) fixture {
	t.Helper()
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	require.NoError(t, os.MkdirAll(raw, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(raw, name), []byte(body), 0o644))
	}
	return fixture{rawDir: raw, store: filepath.Join(root, "football.db")}
}

func (f fixture) loader() *Loader {
	return New(Config{RawDir: f.rawDir, DSN: f.store}, nil)
}

func openStore(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open(store.DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func countRows(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query).Scan(&n))
	return n
}

func dumpTable(t *testing.T, db *sql.DB, table string) [][]any {
	t.Helper()
	rows, err := db.Query(`SELECT * FROM ` + store.QuoteIdentifier(table) + ` ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)

	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		out = append(out, values)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestRun_ReplacesExistingStore(t *testing.T) {
	fx := newFixture(t, map[string]string{"E0.csv": premierLeague, "xg_data_full.csv": xgData})

	old, err := sql.Open(store.DriverSQLite, fx.store)
	require.NoError(t, err)
	_, err = old.Exec(`CREATE TABLE STALE (id INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	report, err := fx.loader().Run(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, report.Failures)

	require.Equal(t, []string{"E0"}, tableNames(t, openStore(t, fx.store)))
}

func TestRun_RowCountsPreserved(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"E0.csv":           premierLeague,
		"SP1.csv":          laLiga,
		"xg_data_full.csv": xgData,
	})

	report, err := fx.loader().Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Tables, 2)
	require.Equal(t, 5, report.TotalRows)
	require.Equal(t, 2, report.XGRows)
	require.Empty(t, report.XGError)

	db := openStore(t, fx.store)
	require.Equal(t, 3, countRows(t, db, `SELECT COUNT(*) FROM "E0"`))
	require.Equal(t, 2, countRows(t, db, `SELECT COUNT(*) FROM "SP1"`))

	// matched, unmatched, and unknown date
	require.Equal(t, 1, countRows(t, db, `SELECT COUNT("xG_Home") FROM "E0"`))
	require.Equal(t, 2, countRows(t, db, `SELECT COUNT(*) FROM "E0" WHERE "Date" IS NOT NULL`))
	require.Equal(t, 2, countRows(t, db, `SELECT COUNT(*) FROM "SP1" WHERE "xG_Home" = 2.6`))

	var e0 TableResult
	for _, tr := range report.Tables {
		if tr.Table == "E0" {
			e0 = tr
		}
	}
	require.Equal(t, TableResult{File: "E0.csv", Table: "E0", Rows: 3, WithXG: 1, Matched: 1, Unmatched: 2, UnknownDates: 1}, e0)
}

func TestRun_DuplicateXGKeysCountOutputRows(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"E0.csv":           "Date,HomeTeam,AwayTeam\n15/08/2025,Arsenal,Chelsea\n16/08/2025,Leeds,Everton\n",
		"xg_data_full.csv": xgData + "EPL,2025-08-15,Arsenal,Chelsea,2,1,1.7,1.0\n",
	})

	report, err := fx.loader().Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, []TableResult{{File: "E0.csv", Table: "E0", Rows: 3, WithXG: 2, Matched: 1, Unmatched: 1}}, report.Tables)
}

func TestRun_NumericTeamNamesStillJoin(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"E0.csv":           "Date,HomeTeam,AwayTeam\n15/08/2025,1,2\n",
		"xg_data_full.csv": "Date,HomeTeam,AwayTeam,xG_Home,xG_Away\n2025-08-15,1,2,1.8,0.9\n",
	})

	report, err := fx.loader().Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Tables, 1)
	require.Equal(t, 1, report.Tables[0].Matched)

	db := openStore(t, fx.store)
	require.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM "E0" WHERE "HomeTeam" = '1' AND "xG_Home" = 1.8`))
}

func TestRun_RepeatedHeaderStillLoads(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"E0.csv": "Date,HomeTeam,AwayTeam,B365,B365.1,B365\n15/08/2025,Arsenal,Chelsea,1.8,1.9,2.0\n",
	})

	report, err := fx.loader().Run(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, report.Failures)
	require.Len(t, report.Tables, 1)

	db := openStore(t, fx.store)
	require.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM "E0" WHERE "B365.2" = 2.0`))
}

func TestRun_MissingXGLeavesNullColumns(t *testing.T) {
	fx := newFixture(t, map[string]string{"E0.csv": premierLeague})

	report, err := fx.loader().Run(context.Background(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, report.XGError)
	require.Equal(t, 0, report.XGRows)

	db := openStore(t, fx.store)
	require.Equal(t, 3, countRows(t, db, `SELECT COUNT(*) FROM "E0"`))
	require.Equal(t, 3, countRows(t, db, `SELECT COUNT(*) FROM "E0" WHERE "xG_Home" IS NULL AND "xG_Away" IS NULL`))
}

func TestRun_BrokenXGDegrades(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"E0.csv":           premierLeague,
		"xg_data_full.csv": "Date,HomeTeam,AwayTeam,xG_Home,xG_Away\n2025-08-15,Arsenal,Chelsea,lots,0.9\n",
	})

	report, err := fx.loader().Run(context.Background(), nil)
	require.NoError(t, err)
	require.Contains(t, report.XGError, "xG_Home")
	require.Len(t, report.Tables, 1)

	db := openStore(t, fx.store)
	require.Equal(t, 0, countRows(t, db, `SELECT COUNT("xG_Home") FROM "E0"`))
}

func TestRun_Deterministic(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"E0.csv":           premierLeague,
		"SP1.csv":          laLiga,
		"xg_data_full.csv": xgData,
	})
	ld := fx.loader()

	_, err := ld.Run(context.Background(), nil)
	require.NoError(t, err)
	db := openStore(t, fx.store)
	first := map[string][][]any{"E0": dumpTable(t, db, "E0"), "SP1": dumpTable(t, db, "SP1")}
	require.NoError(t, db.Close())

	_, err = ld.Run(context.Background(), nil)
	require.NoError(t, err)
	db = openStore(t, fx.store)
	second := map[string][][]any{"E0": dumpTable(t, db, "E0"), "SP1": dumpTable(t, db, "SP1")}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestRun_TableNameCollisionFailsLoudly(t *testing.T) {
	fx := newFixture(t, map[string]string{"E0.csv": premierLeague, "e0.CSV": premierLeague})

	report, err := fx.loader().Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Tables, 1)
	require.Len(t, report.Failures, 1)
	require.Equal(t, "e0.CSV", report.Failures[0].File)
	require.True(t, errors.Is(report.Failures[0].Err, store.ErrTableExists))
}

func TestRun_BadFileDoesNotStopRun(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"A1.csv":           "Div,Date,HomeTeam,AwayTeam\nA1,01/08/2025,X,Y,surplus\n",
		"B1.csv":           "Div,Team\nB1,Anderlecht\n",
		"E0.csv":           premierLeague,
		"README":           "not a csv",
		"xg_data_full.csv": xgData,
	})

	report, err := fx.loader().Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Tables, 1)
	require.Equal(t, "E0", report.Tables[0].Table)
	require.Len(t, report.Failures, 2)
	require.Equal(t, "A1.csv", report.Failures[0].File)
	require.Contains(t, report.Failures[0].Reason, "row 2")
	require.Equal(t, "B1.csv", report.Failures[1].File)
}

func TestRun_XGColumnAlreadyPresent(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"E0.csv":           "Date,HomeTeam,AwayTeam,xG_Home\n15/08/2025,Arsenal,Chelsea,1.1\n",
		"xg_data_full.csv": xgData,
	})

	report, err := fx.loader().Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	require.ErrorIs(t, report.Failures[0].Err, reconciliation.ErrColumnConflict)
}

func TestRun_NoLeagueFilesIsFatal(t *testing.T) {
	fx := newFixture(t, map[string]string{"xg_data_full.csv": xgData})

	_, err := fx.loader().Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoLeagueFiles)

	missing := New(Config{RawDir: filepath.Join(t.TempDir(), "nope"), DSN: fx.store}, nil)
	_, err = missing.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoLeagueFiles)
}

func TestRun_LockedStoreIsFatal(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[string]string{"E0.csv": premierLeague})

	holder := openStore(t, fx.store)
	holder.SetMaxOpenConns(1)
	_, err := holder.Exec(`CREATE TABLE E0 (id INTEGER)`)
	require.NoError(t, err)

	conn, err := holder.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.ExecContext(ctx, "BEGIN EXCLUSIVE")
	require.NoError(t, err)
	defer conn.ExecContext(ctx, "ROLLBACK")

	report, err := fx.loader().Run(ctx, nil)
	require.ErrorIs(t, err, store.ErrStoreLocked)
	require.Empty(t, report.Tables)

	_, err = os.Stat(fx.store)
	require.NoError(t, err)
}

func TestRun_CancelledBetweenFiles(t *testing.T) {
	fx := newFixture(t, map[string]string{"E0.csv": premierLeague})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.loader().Run(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

type recordingReporter struct {
	events []string
}

func (r *recordingReporter) OnRunStart(Config) { r.events = append(r.events, "start") }
func (r *recordingReporter) OnStoreReset(store.ResetResult) { r.events = append(r.events, "reset") }
func (r *recordingReporter) OnXGLoaded(string, int) { r.events = append(r.events, "xg") }
func (r *recordingReporter) OnXGUnavailable(string, error) { r.events = append(r.events, "no-xg") }
func (r *recordingReporter) OnFileStart(file, _ string, _, _ int) { r.events = append(r.events, "file:"+file) }
func (r *recordingReporter) OnFileLoaded(res TableResult) { r.events = append(r.events, "ok:"+res.Table) }
func (r *recordingReporter) OnFileFailed(f FileFailure) { r.events = append(r.events, "fail:"+f.Table) }
func (r *recordingReporter) OnRunComplete(*Report) { r.events = append(r.events, "done") }

func TestRun_ReporterEvents(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"E0.csv": premierLeague,
		"F1.csv": "Div,Team\nF1,Lens\n",
	})

	a, b := &recordingReporter{}, &recordingReporter{}
	_, err := fx.loader().Run(context.Background(), MultiReporter{a, NewLogReporter(nil), b})
	require.NoError(t, err)

	want := []string{"start", "reset", "no-xg", "file:E0.csv", "ok:E0", "file:F1.csv", "fail:F1", "done"}
	require.Equal(t, want, a.events)
	require.Equal(t, want, b.events)
}

func TestDiscoverLeagueFiles(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"E0.csv":               "",
		"D1.CSV":               "",
		"xg_data_full.csv":     "",
		"xg_data_full_old.csv": "",
		"notes.txt":            "",
	})
	require.NoError(t, os.Mkdir(filepath.Join(fx.rawDir, "dir.csv"), 0o755))

	files, err := DiscoverLeagueFiles(fx.rawDir, "xg_data_full.csv")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(fx.rawDir, "D1.CSV"),
		filepath.Join(fx.rawDir, "E0.csv"),
	}, files)

	require.Equal(t, "E0", TableName("data/raw/E0.csv"))
	require.Equal(t, "SC0", TableName("SC0.CSV"))
}

func TestWriteSummary(t *testing.T) {
	report := &Report{
		StorePath: "football_2526.db",
		Tables:    []TableResult{{File: "E0.csv", Table: "E0", Rows: 3, WithXG: 1, Matched: 1, UnknownDates: 1}},
		Failures:  []FileFailure{{File: "B1.csv", Table: "B1", Reason: "missing column Date"}},
		TotalRows: 3,
	}

	var buf bytes.Buffer
	WriteSummary(&buf, report)

	out := buf.String()
	require.Contains(t, out, "E0.csv")
	require.Contains(t, out, "missing column Date")
	require.Contains(t, out, "football_2526.db")
}
