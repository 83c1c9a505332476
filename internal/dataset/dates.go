package dataset

import (
	"strings"
	"time"
)

// Layouts tried, in order, for day-first league dates (football-data.co.uk style).
var dayFirstLayouts = []string{
	"2/1/2006",
	"2/1/06",
	"2-1-2006",
	"2-1-06",
	"2.1.2006",
	"2.1.06",
	"2006-01-02",
}

// Layouts tried for sources that write ISO-like dates (understat, our own xG export).
var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
}

// ParseDayFirst parses a DD/MM/YYYY style date. Time of day is discarded.
func ParseDayFirst(s string) (time.Time, bool) {
	return parseWith(dayFirstLayouts, s)
}

// ParseDate parses an ISO style date or datetime. Time of day is discarded.
func ParseDate(s string) (time.Time, bool) {
	return parseWith(isoLayouts, s)
}

// ParseDateColumn converts the named raw column into a DATE column.
// Cells that fail to parse become nil; the number of such cells is returned.
func ParseDateColumn(f *Frame, name string, parse func(string) (time.Time, bool)) (int, error) {
	if err := f.Require(name); err != nil {
		return 0, err
	}
	idx := f.Index(name)

	unknown := 0
	for _, row := range f.Rows {
		raw, _ := row[idx].(string)
		t, ok := parse(raw)
		if !ok {
			row[idx] = nil
			unknown++
			continue
		}
		row[idx] = t
	}
	f.Columns[idx].Type = TypeDate

	return unknown, nil
}

func parseWith(layouts []string, s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDate(t), true
		}
	}
	return time.Time{}, false
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
