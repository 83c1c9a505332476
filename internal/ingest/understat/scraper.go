// Package understat collects per-match expected goals from understat.com and
// writes them as the xG file the loader joins onto league tables.
package understat

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fortuna/footballdb/internal/config"
	"github.com/fortuna/footballdb/internal/xg"
)

// DefaultBaseURL is the league page root
const DefaultBaseURL = "https://understat.com/league"

// ErrNoRows is returned by Save when there is nothing to write.
var ErrNoRows = errors.New("no xG rows collected")

// Header of the xG file.
var Header = []string{"League", xg.ColDate, xg.ColHomeTeam, xg.ColAwayTeam, "FTHG", "FTAG", xg.ColXGHome, xg.ColXGAway}

// Cache stores raw datesData payloads. *cache.RedisCache satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// LeagueError is a league that produced no rows because of a failure.
type LeagueError struct {
	League string `json:"league"`
	Err    string `json:"error"`
}

// Result is the outcome of one scrape.
type Result struct {
	Rows    []Row          `json:"-"`
	Counts  map[string]int `json:"counts"`
	Cached  []string       `json:"cached"`
	Skipped []LeagueError  `json:"skipped"`
}

type Scraper struct {
	cfg     config.UnderstatConfig
	fetcher Fetcher
	cache   Cache
	logger  *log.Logger
}

// NewScraper builds a scraper. cache may be nil.
func NewScraper(cfg config.UnderstatConfig, fetcher Fetcher, cache Cache, logger *log.Logger) *Scraper {
	if logger == nil {
		logger = log.New(log.Writer(), "[understat] ", log.LstdFlags)
	}
	return &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		cache:   cache,
		logger:  logger,
	}
}

// CachePattern matches every cached payload.
const CachePattern = "understat:dates:*"

// CacheKey is the cache key of one league season payload.
func CacheKey(league, season string) string {
	return fmt.Sprintf("understat:dates:%s:%s", league, season)
}

// Run collects finished matches of every configured league. A league that
// cannot be fetched or decoded is logged and skipped.
func (s *Scraper) Run(ctx context.Context) (*Result, error) {
	result := &Result{Counts: make(map[string]int)}

	for _, league := range s.cfg.Leagues {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		s.logger.Printf("Accessing league: %s %s", league, s.cfg.Season)

		payload, cached, err := s.payload(ctx, league)
		if err != nil {
			s.logger.Printf("⚠️  Could not retrieve datesData for %s: %v", league, err)
			result.Skipped = append(result.Skipped, LeagueError{League: league, Err: err.Error()})
			continue
		}

		rows, err := s.ParseLeague(league, payload)
		if err != nil {
			s.logger.Printf("⚠️  Could not decode datesData for %s: %v", league, err)
			result.Skipped = append(result.Skipped, LeagueError{League: league, Err: err.Error()})
			continue
		}
		if len(rows) == 0 {
			s.logger.Printf("⚠️  No finished matches for %s", league)
		}

		if cached {
			result.Cached = append(result.Cached, league)
		} else {
			s.store(ctx, league, payload)
		}

		result.Rows = append(result.Rows, rows...)
		result.Counts[league] = len(rows)
		s.logger.Printf("✓ Extracted %d matches for %s", len(rows), league)
	}

	return result, nil
}

func (s *Scraper) payload(ctx context.Context, league string) ([]byte, bool, error) {
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, CacheKey(league, s.cfg.Season)); err == nil && hit != "" {
			return []byte(hit), true, nil
		}
	}

	payload, err := s.fetcher.FetchDates(ctx, league, s.cfg.Season)
	return payload, false, err
}

func (s *Scraper) store(ctx context.Context, league string, payload []byte) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, CacheKey(league, s.cfg.Season), string(payload), s.cfg.CacheTTL); err != nil {
		s.logger.Printf("⚠️  Failed to cache %s payload: %v", league, err)
	}
}

// ParseLeague turns a datesData payload into rows. Unfinished matches are
// dropped, team titles are translated and xG is rounded to two decimals.
func (s *Scraper) ParseLeague(league string, payload []byte) ([]Row, error) {
	var matches []Match
	if err := json.Unmarshal(payload, &matches); err != nil {
		return nil, fmt.Errorf("decode datesData: %w", err)
	}

	rows := make([]Row, 0, len(matches))
	for _, m := range matches {
		if !m.IsResult {
			continue
		}

		date, err := matchDate(m.Datetime)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", m.ID, err)
		}
		if !m.Goals.H.Valid || !m.Goals.A.Valid || !m.XG.H.Valid || !m.XG.A.Valid {
			return nil, fmt.Errorf("match %s: missing goals or xG", m.ID)
		}

		rows = append(rows, Row{
			League:   league,
			Date:     date,
			HomeTeam: s.cfg.TeamName(m.Home.Title),
			AwayTeam: s.cfg.TeamName(m.Away.Title),
			FTHG:     int(m.Goals.H.Value),
			FTAG:     int(m.Goals.A.Value),
			XGHome:   round2(m.XG.H.Value),
			XGAway:   round2(m.XG.A.Value),
		})
	}

	return rows, nil
}

func matchDate(raw string) (string, error) {
	t, ok := parseDatetime(raw)
	if !ok {
		return "", fmt.Errorf("unparseable datetime %q", raw)
	}
	return t.Format("2006-01-02"), nil
}

func parseDatetime(raw string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WriteCSV writes rows with the xG file header.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.League,
			r.Date,
			r.HomeTeam,
			r.AwayTeam,
			strconv.Itoa(r.FTHG),
			strconv.Itoa(r.FTAG),
			strconv.FormatFloat(r.XGHome, 'f', -1, 64),
			strconv.FormatFloat(r.XGAway, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes rows to path, replacing any previous file. Nothing is written
// when rows is empty.
func Save(path string, rows []Row) error {
	if len(rows) == 0 {
		return ErrNoRows
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
