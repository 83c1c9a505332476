package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fortuna/footballdb/internal/config"
)

// Stage is one step of the daily pipeline. A failing Required stage stops
// the remaining stages of that run; other failures are logged and skipped.
type Stage struct {
	Name     string
	Required bool
	Run      func(ctx context.Context) error
}

// StageResult is the outcome of a stage in the last pipeline run
type StageResult struct {
	Name     string        `json:"name"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Config holds scheduler configuration
type Config struct {
	DailyHour  int            // Default: 6
	RunOnStart bool           // Default: false
	MaxRetries int            // Default: 3
	RetryDelay time.Duration  // Default: 2m
	Location   *time.Location // Default: time.Local
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		DailyHour:  6,
		MaxRetries: 3,
		RetryDelay: 2 * time.Minute,
		Location:   time.Local,
	}
}

// FromSettings converts the file configuration.
func FromSettings(s config.SchedulerConfig) *Config {
	cfg := DefaultConfig()
	cfg.DailyHour = s.Hour
	cfg.RunOnStart = s.RunOnStart
	if s.MaxRetries > 0 {
		cfg.MaxRetries = s.MaxRetries
	}
	if s.RetryDelay > 0 {
		cfg.RetryDelay = s.RetryDelay
	}
	return cfg
}

// Orchestrator runs the scrape and rebuild pipeline once a day
type Orchestrator struct {
	config *Config
	stages []Stage
	logger *log.Logger

	runMu sync.Mutex // one pipeline at a time

	mu      sync.Mutex
	lastRun time.Time
	nextRun time.Time
	lastErr error
	results []StageResult
	cancel  context.CancelFunc
}

// NewOrchestrator creates a new scheduler orchestrator
func NewOrchestrator(cfg *Config, logger *log.Logger, stages ...Stage) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[scheduler] ", log.LstdFlags)
	}

	return &Orchestrator{
		config: cfg,
		stages: stages,
		logger: logger,
	}
}

// DailySpec is the cron expression firing at hour:00 every day.
func DailySpec(hour int) string {
	return fmt.Sprintf("0 %d * * *", hour)
}

// Start runs the daily schedule and blocks until ctx is cancelled or Stop
// is called. A run still in progress when the next one fires is not doubled.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	cronLogger := cron.PrintfLogger(o.logger)
	c := cron.New(
		cron.WithLocation(o.config.Location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	var id cron.EntryID
	id, err := c.AddFunc(DailySpec(o.config.DailyHour), func() {
		o.RunPipeline(ctx)
		o.setNextRun(c.Entry(id).Next)
	})
	if err != nil {
		return fmt.Errorf("schedule daily pipeline: %w", err)
	}

	o.logger.Printf("Daily pipeline at %02d:00 with %d stages (retries: %d, delay: %v)",
		o.config.DailyHour, len(o.stages), o.config.MaxRetries, o.config.RetryDelay)

	c.Start()
	o.setNextRun(c.Entry(id).Next)

	if o.config.RunOnStart {
		o.RunPipeline(ctx)
	}

	<-ctx.Done()
	<-c.Stop().Done()
	o.logger.Println("Scheduler stopped")
	return nil
}

func (o *Orchestrator) setNextRun(next time.Time) {
	o.mu.Lock()
	o.nextRun = next
	o.mu.Unlock()

	if !next.IsZero() {
		o.logger.Printf("Next pipeline run: %s (in %v)", next.Format("2006-01-02 15:04:05"), time.Until(next).Round(time.Second))
	}
}

// NextRun returns the first occurrence of hour:00 strictly after now, or
// the zero time for an invalid hour.
func NextRun(now time.Time, hour int) time.Time {
	schedule, err := cron.ParseStandard(DailySpec(hour))
	if err != nil {
		return time.Time{}
	}
	return schedule.Next(now)
}

// RunPipeline executes every stage in order and returns the first error of
// the run, if any.
func (o *Orchestrator) RunPipeline(ctx context.Context) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	o.logger.Println("═══ Pipeline Starting ═══")
	start := time.Now()

	var (
		results  []StageResult
		firstErr error
	)
	for _, stage := range o.stages {
		res, err := o.runStage(ctx, stage)
		results = append(results, res)
		if err == nil {
			continue
		}

		if firstErr == nil {
			firstErr = fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		if stage.Required || ctx.Err() != nil {
			o.logger.Printf("❌ Stage %s failed, skipping remaining stages", stage.Name)
			break
		}
	}

	o.mu.Lock()
	o.lastRun = start
	o.lastErr = firstErr
	o.results = results
	o.mu.Unlock()

	if firstErr != nil {
		o.logger.Printf("═══ Pipeline finished with errors in %v ═══", time.Since(start).Round(time.Second))
	} else {
		o.logger.Printf("═══ Pipeline Complete in %v ═══", time.Since(start).Round(time.Second))
	}
	return firstErr
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage) (StageResult, error) {
	res := StageResult{Name: stage.Name}
	start := time.Now()

	var err error
	for attempt := 1; attempt <= o.config.MaxRetries; attempt++ {
		res.Attempts = attempt
		err = stage.Run(ctx)
		if err == nil {
			o.logger.Printf("✓ %s complete", stage.Name)
			res.Duration = time.Since(start)
			return res, nil
		}

		o.logger.Printf("⚠️  %s attempt %d/%d failed: %v", stage.Name, attempt, o.config.MaxRetries, err)

		if attempt < o.config.MaxRetries {
			select {
			case <-ctx.Done():
				err = errors.Join(err, ctx.Err())
				res.Error = err.Error()
				res.Duration = time.Since(start)
				return res, err
			case <-time.After(o.config.RetryDelay):
			}
		}
	}

	res.Error = err.Error()
	res.Duration = time.Since(start)
	return res, err
}

// Stop ends Start
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() map[string]interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := map[string]interface{}{
		"daily_hour":  o.config.DailyHour,
		"max_retries": o.config.MaxRetries,
		"retry_delay": o.config.RetryDelay.String(),
		"stages":      o.results,
	}
	if !o.lastRun.IsZero() {
		status["last_run"] = o.lastRun
	}
	if !o.nextRun.IsZero() {
		status["next_run"] = o.nextRun
	}
	if o.lastErr != nil {
		status["last_error"] = o.lastErr.Error()
	}
	return status
}
