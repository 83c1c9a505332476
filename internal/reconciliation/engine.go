package reconciliation

import (
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/footballdb/internal/dataset"
	"github.com/fortuna/footballdb/internal/xg"
)

// ErrColumnConflict is returned when a league file already carries one of the xG columns.
var ErrColumnConflict = errors.New("league file already has an xG column")

// Metrics describes the outcome of merging one league frame
type Metrics struct {
	Rows         int
	Matched      int
	Unmatched    int
	UnknownDates int
	FannedOut    int
}

// Engine joins xG figures onto league frames
type Engine struct {
	matcher *Matcher
}

// NewEngine creates an engine over the loaded xG records. An empty or nil
// slice is valid: every merged row then gets null xG values.
func NewEngine(records []xg.Record) *Engine {
	return &Engine{matcher: NewMatcher(records)}
}

// Matcher exposes the engine's xG index
func (e *Engine) Matcher() *Matcher {
	return e.matcher
}

// Merge left-joins the xG records onto the league frame on (Date, HomeTeam, AwayTeam).
//
// The Date column must already be typed (see dataset.ParseDateColumn); rows with
// an unknown date never match. Every league row is kept. A league row whose key
// matches several xG rows is repeated once per match.
func (e *Engine) Merge(league *dataset.Frame) (*dataset.Frame, Metrics, error) {
	if err := league.Require(xg.ColDate, xg.ColHomeTeam, xg.ColAwayTeam); err != nil {
		return nil, Metrics{}, err
	}
	for _, col := range []string{xg.ColXGHome, xg.ColXGAway} {
		if league.HasColumn(col) {
			return nil, Metrics{}, fmt.Errorf("%s: %w (%s)", league.Name, ErrColumnConflict, col)
		}
	}

	dateIdx := league.Index(xg.ColDate)
	if league.Columns[dateIdx].Type != dataset.TypeDate {
		return nil, Metrics{}, fmt.Errorf("%s: %s column has not been parsed as dates", league.Name, xg.ColDate)
	}

	if e.matcher.Len() == 0 {
		return e.attachEmpty(league)
	}

	homeIdx := league.Index(xg.ColHomeTeam)
	awayIdx := league.Index(xg.ColAwayTeam)

	merged := &dataset.Frame{
		Name:    league.Name,
		Columns: append(append([]dataset.Column(nil), league.Columns...), xgColumns()...),
		Rows:    make([][]any, 0, league.Len()),
	}
	metrics := Metrics{Rows: league.Len()}

	for _, row := range league.Rows {
		date, ok := row[dateIdx].(time.Time)
		if !ok {
			metrics.UnknownDates++
			metrics.Unmatched++
			merged.Rows = append(merged.Rows, extend(row, nil, nil))
			continue
		}

		home, _ := row[homeIdx].(string)
		away, _ := row[awayIdx].(string)
		matches := e.matcher.Find(NewMatchKey(date, home, away))
		if len(matches) == 0 {
			metrics.Unmatched++
			merged.Rows = append(merged.Rows, extend(row, nil, nil))
			continue
		}

		metrics.Matched++
		metrics.FannedOut += len(matches) - 1
		for _, m := range matches {
			merged.Rows = append(merged.Rows, extend(row, m.XGHome, m.XGAway))
		}
	}

	return merged, metrics, nil
}

// attachEmpty adds null xG columns without joining, so the schema is the same
// whether or not xG data was available.
func (e *Engine) attachEmpty(league *dataset.Frame) (*dataset.Frame, Metrics, error) {
	metrics := Metrics{Rows: league.Len(), Unmatched: league.Len()}
	dateIdx := league.Index(xg.ColDate)
	for _, row := range league.Rows {
		if _, ok := row[dateIdx].(time.Time); !ok {
			metrics.UnknownDates++
		}
	}

	for _, col := range xgColumns() {
		if err := league.AppendColumn(col, nil); err != nil {
			return nil, Metrics{}, err
		}
	}
	return league, metrics, nil
}

func xgColumns() []dataset.Column {
	return []dataset.Column{
		{Name: xg.ColXGHome, Type: dataset.TypeReal},
		{Name: xg.ColXGAway, Type: dataset.TypeReal},
	}
}

func extend(row []any, home, away *float64) []any {
	out := make([]any, len(row), len(row)+2)
	copy(out, row)
	return append(out, floatOrNil(home), floatOrNil(away))
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
