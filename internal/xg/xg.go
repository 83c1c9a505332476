// Package xg loads the match-level Expected Goals file produced by the
// understat ingester and reduces it to the columns the merge needs.
package xg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fortuna/footballdb/internal/dataset"
)

// Column names shared by the xG file and the merged league tables.
const (
	ColDate     = "Date"
	ColHomeTeam = "HomeTeam"
	ColAwayTeam = "AwayTeam"
	ColXGHome   = "xG_Home"
	ColXGAway   = "xG_Away"
)

// DefaultFileName is the file the understat ingester writes into the raw directory.
const DefaultFileName = "xg_data_full.csv"

// Columns lists the columns kept from the xG source, in output order.
var Columns = []string{ColDate, ColHomeTeam, ColAwayTeam, ColXGHome, ColXGAway}

// ErrNotFound is returned by Load when the xG file does not exist.
var ErrNotFound = errors.New("xg file not found")

// Record is one completed match with its xG figures.
type Record struct {
	Date     time.Time
	HomeTeam string
	AwayTeam string
	XGHome   *float64
	XGAway   *float64
}

// Load reads the xG file at path. Any other column in the file is dropped.
// A single bad date or xG value fails the whole file.
func Load(path string) ([]Record, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}

	frame, err := dataset.ReadCSV(path)
	if err != nil {
		return nil, err
	}

	frame, err = frame.Project(Columns...)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, frame.Len())
	for i := range frame.Rows {
		rec, err := parseRow(frame, i)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", frame.Name, i+2, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseRow(frame *dataset.Frame, i int) (Record, error) {
	rawDate, _ := frame.Value(i, ColDate).(string)
	date, ok := dataset.ParseDate(rawDate)
	if !ok {
		return Record{}, fmt.Errorf("unparseable date %q", rawDate)
	}

	home, err := parseXG(frame.Value(i, ColXGHome))
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", ColXGHome, err)
	}
	away, err := parseXG(frame.Value(i, ColXGAway))
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", ColXGAway, err)
	}

	homeTeam, _ := frame.Value(i, ColHomeTeam).(string)
	awayTeam, _ := frame.Value(i, ColAwayTeam).(string)

	return Record{
		Date:     date,
		HomeTeam: homeTeam,
		AwayTeam: awayTeam,
		XGHome:   home,
		XGAway:   away,
	}, nil
}

func parseXG(v any) (*float64, error) {
	s, _ := v.(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q", s)
	}
	return &f, nil
}

// Float returns a pointer to v. Handy when building records by hand.
func Float(v float64) *float64 {
	return &v
}
