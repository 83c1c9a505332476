package loader

import (
	"time"

	"github.com/fortuna/footballdb/internal/store"
)

// Config describes where a run reads its inputs and writes its store.
type Config struct {
	RawDir     string `json:"raw_dir"`
	XGFileName string `json:"xg_file"`
	Driver     string `json:"driver"`
	DSN        string `json:"store"`
}

// TableResult is a league file that was merged and written. Rows and WithXG
// count output rows; Matched and Unmatched count league rows, so they differ
// when an xG key repeats.
type TableResult struct {
	File         string `json:"file"`
	Table        string `json:"table"`
	Rows         int    `json:"rows"`
	WithXG       int    `json:"with_xg"`
	Matched      int    `json:"matched"`
	Unmatched    int    `json:"unmatched"`
	UnknownDates int    `json:"unknown_dates"`
}

// FileFailure is a league file that was skipped.
type FileFailure struct {
	File   string `json:"file"`
	Table  string `json:"table"`
	Reason string `json:"error"`
	Err    error  `json:"-"`
}

// Report summarises one run of the loader.
type Report struct {
	StorePath  string        `json:"store"`
	XGFile     string        `json:"xg_file"`
	XGRows     int           `json:"xg_rows"`
	XGError    string        `json:"xg_error,omitempty"`
	Tables     []TableResult `json:"tables"`
	Failures   []FileFailure `json:"failures"`
	TotalRows  int           `json:"total_rows"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Reporter receives lifecycle callbacks from the loader.
type Reporter interface {
	OnRunStart(cfg Config)
	OnStoreReset(res store.ResetResult)
	OnXGLoaded(path string, rows int)
	OnXGUnavailable(path string, err error)
	OnFileStart(file, table string, index, total int)
	OnFileLoaded(result TableResult)
	OnFileFailed(failure FileFailure)
	OnRunComplete(report *Report)
}

// MultiReporter fans every callback out to each reporter in order.
type MultiReporter []Reporter

func (m MultiReporter) OnRunStart(cfg Config) {
	for _, r := range m {
		r.OnRunStart(cfg)
	}
}

func (m MultiReporter) OnStoreReset(res store.ResetResult) {
	for _, r := range m {
		r.OnStoreReset(res)
	}
}

func (m MultiReporter) OnXGLoaded(path string, rows int) {
	for _, r := range m {
		r.OnXGLoaded(path, rows)
	}
}

func (m MultiReporter) OnXGUnavailable(path string, err error) {
	for _, r := range m {
		r.OnXGUnavailable(path, err)
	}
}

func (m MultiReporter) OnFileStart(file, table string, index, total int) {
	for _, r := range m {
		r.OnFileStart(file, table, index, total)
	}
}

func (m MultiReporter) OnFileLoaded(result TableResult) {
	for _, r := range m {
		r.OnFileLoaded(result)
	}
}

func (m MultiReporter) OnFileFailed(failure FileFailure) {
	for _, r := range m {
		r.OnFileFailed(failure)
	}
}

func (m MultiReporter) OnRunComplete(report *Report) {
	for _, r := range m {
		r.OnRunComplete(report)
	}
}

// NopReporter ignores every callback. Embed it to implement only some of them.
type NopReporter struct{}

func (NopReporter) OnRunStart(Config) {}
func (NopReporter) OnStoreReset(store.ResetResult) {}
func (NopReporter) OnXGLoaded(string, int) {}
func (NopReporter) OnXGUnavailable(string, error) {}
func (NopReporter) OnFileStart(string, string, int, int) {}
func (NopReporter) OnFileLoaded(TableResult) {}
func (NopReporter) OnFileFailed(FileFailure) {}
func (NopReporter) OnRunComplete(*Report) {}
