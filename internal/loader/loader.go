// Package loader rebuilds the football store from the raw league and xG files.
//
// A run is strictly sequential: the previous store is removed, the xG file is
// loaded (or skipped), then every league file is read, date-normalised, joined
// with xG and written as its own table. A failing league file is recorded in
// the Report and the run moves on to the next one.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fortuna/footballdb/internal/dataset"
	"github.com/fortuna/footballdb/internal/reconciliation"
	"github.com/fortuna/footballdb/internal/store"
	"github.com/fortuna/footballdb/internal/xg"
)

// ErrNoLeagueFiles is returned when the raw directory holds no league files.
var ErrNoLeagueFiles = errors.New("no league data CSV files found")

// Join key columns stay text whatever their cells look like, matching the
// xG side.
var keyColumnTypes = map[string]dataset.ColumnType{
	xg.ColHomeTeam: dataset.TypeText,
	xg.ColAwayTeam: dataset.TypeText,
}

// Loader executes full rebuilds of the store.
type Loader struct {
	cfg    Config
	logger *log.Logger
}

// New constructs a loader. A nil logger writes to the standard logger's output.
func New(cfg Config, logger *log.Logger) *Loader {
	if cfg.XGFileName == "" {
		cfg.XGFileName = xg.DefaultFileName
	}
	if cfg.Driver == "" {
		cfg.Driver = store.DriverSQLite
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[loader] ", log.LstdFlags)
	}

	return &Loader{
		cfg:    cfg,
		logger: logger,
	}
}

// Config returns the loader's configuration
func (l *Loader) Config() Config {
	return l.cfg
}

// Run rebuilds the store. The returned error is non-nil only for fatal
// conditions (locked store, no league files, store cannot be opened, or
// cancellation); per-file problems are in Report.Failures.
func (l *Loader) Run(ctx context.Context, reporter Reporter) (*Report, error) {
	if reporter == nil {
		reporter = NopReporter{}
	}

	report := &Report{
		StorePath: l.cfg.DSN,
		XGFile:    l.xgPath(),
		Tables:    []TableResult{},
		Failures:  []FileFailure{},
		StartedAt: time.Now(),
	}
	reporter.OnRunStart(l.cfg)

	reset, err := store.Reset(ctx, l.cfg.Driver, l.cfg.DSN)
	if err != nil {
		return report, fmt.Errorf("reset store: %w", err)
	}
	reporter.OnStoreReset(reset)

	records := l.loadXG(report, reporter)

	files, err := DiscoverLeagueFiles(l.cfg.RawDir, l.cfg.XGFileName)
	if err != nil {
		return report, fmt.Errorf("%w: %v", ErrNoLeagueFiles, err)
	}
	if len(files) == 0 {
		return report, fmt.Errorf("%w in %s", ErrNoLeagueFiles, l.cfg.RawDir)
	}

	db, err := store.NewDatabase(l.cfg.Driver, l.cfg.DSN)
	if err != nil {
		return report, fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine := reconciliation.NewEngine(records)
	if dup := engine.Matcher().DuplicateKeys(); dup > 0 {
		l.logger.Printf("⚠️  xG source has %d duplicate match keys; affected league rows will repeat", dup)
	}

	for idx, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		file := filepath.Base(path)
		table := TableName(path)
		reporter.OnFileStart(file, table, idx, len(files))

		result, err := l.processFile(ctx, db, engine, path)
		if err != nil {
			failure := FileFailure{File: file, Table: table, Reason: err.Error(), Err: err}
			report.Failures = append(report.Failures, failure)
			reporter.OnFileFailed(failure)
			continue
		}

		report.Tables = append(report.Tables, result)
		report.TotalRows += result.Rows
		reporter.OnFileLoaded(result)
	}

	report.FinishedAt = time.Now()
	reporter.OnRunComplete(report)

	return report, nil
}

func (l *Loader) xgPath() string {
	return filepath.Join(l.cfg.RawDir, l.cfg.XGFileName)
}

// loadXG returns the xG records, or nil when the source is missing or broken.
func (l *Loader) loadXG(report *Report, reporter Reporter) []xg.Record {
	path := l.xgPath()

	records, err := xg.Load(path)
	if err != nil {
		report.XGError = err.Error()
		reporter.OnXGUnavailable(path, err)
		return nil
	}

	report.XGRows = len(records)
	reporter.OnXGLoaded(path, len(records))
	return records
}

func (l *Loader) processFile(ctx context.Context, db *store.Database, engine *reconciliation.Engine, path string) (TableResult, error) {
	table := TableName(path)
	result := TableResult{File: filepath.Base(path), Table: table}

	frame, err := dataset.ReadCSV(path)
	if err != nil {
		return result, err
	}
	if err := frame.Require(xg.ColDate, xg.ColHomeTeam, xg.ColAwayTeam); err != nil {
		return result, err
	}

	if _, err := dataset.ParseDateColumn(frame, xg.ColDate, dataset.ParseDayFirst); err != nil {
		return result, err
	}
	dataset.InferTypes(frame, keyColumnTypes)

	merged, metrics, err := engine.Merge(frame)
	if err != nil {
		return result, fmt.Errorf("merge: %w", err)
	}

	rows, err := db.WriteTable(ctx, table, merged)
	if err != nil {
		return result, fmt.Errorf("write: %w", err)
	}

	result.Rows = rows
	result.Matched = metrics.Matched
	result.WithXG = metrics.Matched + metrics.FannedOut
	result.Unmatched = metrics.Unmatched
	result.UnknownDates = metrics.UnknownDates
	return result, nil
}
