package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fortuna/footballdb/internal/loader"
	"github.com/fortuna/footballdb/internal/store"
	"github.com/fortuna/footballdb/internal/store/repository"
)

var (
	// ErrLoadInProgress is returned when a rebuild is requested while one runs.
	ErrLoadInProgress = errors.New("a load is already running")

	// ErrStoreNotReady is returned by reads before the first successful build.
	ErrStoreNotReady = errors.New("store has not been built yet")
)

// LoadStatus is the externally visible state of the load service
type LoadStatus struct {
	Running   bool           `json:"running"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
	Last      *loader.Report `json:"last,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// LoadService serialises store rebuilds against readers. A rebuild holds the
// write lock for its whole duration, so no query ever sees a half-built store.
type LoadService struct {
	loader   *loader.Loader
	reporter loader.Reporter

	mu sync.RWMutex

	stateMu   sync.Mutex
	running   bool
	startedAt time.Time
	last      *loader.Report
	lastErr   string
	history   []*loader.Report

	historyLimit int

	dbMu sync.Mutex
	db   *store.Database

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewLoadService constructs a LoadService. reporter receives the events of
// every run and may be nil.
func NewLoadService(ld *loader.Loader, reporter loader.Reporter, logger *log.Logger) *LoadService {
	ctx, cancel := context.WithCancel(context.Background())

	if reporter == nil {
		reporter = loader.NopReporter{}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[loads] ", log.LstdFlags)
	}

	return &LoadService{
		loader:       ld,
		reporter:     reporter,
		historyLimit: 10,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}
}

// Rebuild runs a load and waits for it.
func (s *LoadService) Rebuild(ctx context.Context) (*loader.Report, error) {
	if !s.begin() {
		return nil, ErrLoadInProgress
	}
	return s.run(ctx)
}

// StartRebuild launches a load in the background. It fails immediately with
// ErrLoadInProgress when one is already running.
func (s *LoadService) StartRebuild() error {
	if !s.begin() {
		return ErrLoadInProgress
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.run(s.ctx); err != nil {
			s.logger.Printf("⚠️  Background load failed: %v", err)
		}
	}()
	return nil
}

func (s *LoadService) begin() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.running {
		return false
	}
	s.running = true
	s.startedAt = time.Now()
	return true
}

func (s *LoadService) run(ctx context.Context) (*loader.Report, error) {
	s.mu.Lock()
	s.closeReadDB()
	report, err := s.loader.Run(ctx, s.reporter)
	s.mu.Unlock()

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	s.running = false
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
	}
	if report != nil {
		s.last = report
		s.history = append(s.history, report)
		if len(s.history) > s.historyLimit {
			s.history = s.history[len(s.history)-s.historyLimit:]
		}
	}

	return report, err
}

// Status returns whether a load is running and the outcome of the last one.
func (s *LoadService) Status() LoadStatus {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	status := LoadStatus{
		Running:   s.running,
		Last:      s.last,
		LastError: s.lastErr,
	}
	if s.running {
		started := s.startedAt
		status.StartedAt = &started
	}
	return status
}

// History returns up to the last ten reports, oldest first.
func (s *LoadService) History() []*loader.Report {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	out := make([]*loader.Report, len(s.history))
	copy(out, s.history)
	return out
}

// ListTables returns every loaded table with its row count.
func (s *LoadService) ListTables(ctx context.Context) ([]repository.TableSummary, error) {
	var tables []repository.TableSummary
	err := s.read(func(db *store.Database) error {
		var err error
		tables, err = repository.NewTableRepository(db).ListTables(ctx)
		return err
	})
	return tables, err
}

// QueryMatches returns matches of one table.
func (s *LoadService) QueryMatches(ctx context.Context, table string, filter repository.MatchFilter) ([]repository.Row, error) {
	var rows []repository.Row
	err := s.read(func(db *store.Database) error {
		var err error
		rows, err = repository.NewTableRepository(db).QueryMatches(ctx, table, filter)
		return err
	})
	return rows, err
}

// XGCoverage reports how many rows of a table carry xG.
func (s *LoadService) XGCoverage(ctx context.Context, table string) (*repository.Coverage, error) {
	var cov *repository.Coverage
	err := s.read(func(db *store.Database) error {
		var err error
		cov, err = repository.NewTableRepository(db).XGCoverage(ctx, table)
		return err
	})
	return cov, err
}

// HealthCheck reports whether the store can be read.
func (s *LoadService) HealthCheck() error {
	return s.read(func(db *store.Database) error {
		return db.HealthCheck()
	})
}

func (s *LoadService) read(fn func(db *store.Database) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.readDB()
	if err != nil {
		return err
	}
	return fn(db)
}

// readDB opens the read handle on first use after a rebuild.
func (s *LoadService) readDB() (*store.Database, error) {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	cfg := s.loader.Config()
	if store.IsFileBacked(cfg.Driver) {
		if _, err := os.Stat(cfg.DSN); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, ErrStoreNotReady
			}
			return nil, err
		}
	}

	db, err := store.NewDatabase(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.db = db
	return db, nil
}

func (s *LoadService) closeReadDB() {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Printf("⚠️  Failed to close read handle: %v", err)
		}
		s.db = nil
	}
}

// Shutdown cancels a running load and waits for it to stop.
func (s *LoadService) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		s.closeReadDB()
		return nil
	}
}
