package loader

import (
	"log"

	"github.com/fortuna/footballdb/internal/store"
)

// LogReporter prints operator progress lines.
type LogReporter struct {
	Logger *log.Logger
}

// NewLogReporter returns a reporter writing to logger, or to the standard
// logger when logger is nil.
func NewLogReporter(logger *log.Logger) *LogReporter {
	if logger == nil {
		logger = log.Default()
	}
	return &LogReporter{Logger: logger}
}

func (r *LogReporter) OnRunStart(cfg Config) {
	r.Logger.Printf("Rebuilding %s store %s from %s", cfg.Driver, cfg.DSN, cfg.RawDir)
}

func (r *LogReporter) OnStoreReset(res store.ResetResult) {
	switch {
	case len(res.Dropped) > 0:
		r.Logger.Printf("Dropped %d existing tables", len(res.Dropped))
	case res.Existed:
		r.Logger.Println("Removed existing database file")
	}
}

func (r *LogReporter) OnXGLoaded(path string, rows int) {
	r.Logger.Printf("✓ Loaded xG data: %d matches from %s", rows, path)
}

func (r *LogReporter) OnXGUnavailable(path string, err error) {
	r.Logger.Printf("⚠️  xG data unavailable (%v); xG columns will be empty", err)
}

func (r *LogReporter) OnFileStart(file, table string, index, total int) {
	r.Logger.Printf("[%d/%d] Processing file: %s -> Table: [%s]", index+1, total, file, table)
}

func (r *LogReporter) OnFileLoaded(result TableResult) {
	r.Logger.Printf("✓ %s: success (%d records, %d with xG)", result.Table, result.Rows, result.WithXG)
}

func (r *LogReporter) OnFileFailed(failure FileFailure) {
	r.Logger.Printf("⚠️  Error processing %s: %s", failure.File, failure.Reason)
}

func (r *LogReporter) OnRunComplete(report *Report) {
	r.Logger.Printf("Success! Total records loaded: %d", report.TotalRows)
	r.Logger.Printf("Database ready: %s (%d tables, %d failed files)", report.StorePath, len(report.Tables), len(report.Failures))
}
