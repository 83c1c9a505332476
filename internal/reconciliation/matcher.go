package reconciliation

import (
	"strings"
	"time"

	"github.com/fortuna/footballdb/internal/xg"
)

// MatchKey identifies a match across the league and xG sources.
type MatchKey struct {
	Date     string
	HomeTeam string
	AwayTeam string
}

// NewMatchKey builds the join key for a match. Team names are compared
// byte-for-byte once surrounding whitespace is removed.
func NewMatchKey(date time.Time, homeTeam, awayTeam string) MatchKey {
	return MatchKey{
		Date:     date.Format("2006-01-02"),
		HomeTeam: normalizeTeamName(homeTeam),
		AwayTeam: normalizeTeamName(awayTeam),
	}
}

// Matcher indexes xG records by match key
type Matcher struct {
	records []xg.Record
	index   map[MatchKey][]int
}

// NewMatcher creates a matcher over the given xG records
func NewMatcher(records []xg.Record) *Matcher {
	index := make(map[MatchKey][]int, len(records))
	for i, rec := range records {
		key := NewMatchKey(rec.Date, rec.HomeTeam, rec.AwayTeam)
		index[key] = append(index[key], i)
	}

	return &Matcher{
		records: records,
		index:   index,
	}
}

// Len returns the number of indexed xG records
func (m *Matcher) Len() int {
	return len(m.records)
}

// Find returns every xG record sharing the key, in source order.
func (m *Matcher) Find(key MatchKey) []xg.Record {
	idx := m.index[key]
	if len(idx) == 0 {
		return nil
	}

	out := make([]xg.Record, len(idx))
	for i, j := range idx {
		out[i] = m.records[j]
	}
	return out
}

// DuplicateKeys counts keys that map to more than one xG record
func (m *Matcher) DuplicateKeys() int {
	n := 0
	for _, idx := range m.index {
		if len(idx) > 1 {
			n++
		}
	}
	return n
}

func normalizeTeamName(teamName string) string {
	return strings.TrimSpace(teamName)
}
