package scheduler

import (
	"context"
	"fmt"

	"github.com/fortuna/footballdb/internal/ingest/footballdata"
	"github.com/fortuna/footballdb/internal/ingest/understat"
	"github.com/fortuna/footballdb/internal/loader"
)

// LeagueScraper downloads league CSVs
type LeagueScraper interface {
	Run(ctx context.Context) (*footballdata.Result, error)
}

// XGScraper collects understat rows
type XGScraper interface {
	Run(ctx context.Context) (*understat.Result, error)
}

// Rebuilder rebuilds the store
type Rebuilder interface {
	Rebuild(ctx context.Context) (*loader.Report, error)
}

// LeagueStage downloads league files. It fails only when pages errored and
// nothing at all was saved, so a partial outage still feeds the rebuild.
func LeagueStage(s LeagueScraper) Stage {
	return Stage{
		Name: "league-scrape",
		Run: func(ctx context.Context) error {
			res, err := s.Run(ctx)
			if err != nil {
				return err
			}
			if len(res.Downloads) == 0 && len(res.Errors) > 0 {
				return fmt.Errorf("no league files downloaded, %d errors (first: %s)", len(res.Errors), res.Errors[0].Err)
			}
			return nil
		},
	}
}

// XGStage scrapes understat and replaces the xG file at path.
func XGStage(s XGScraper, path string) Stage {
	return Stage{
		Name: "xg-scrape",
		Run: func(ctx context.Context) error {
			res, err := s.Run(ctx)
			if err != nil {
				return err
			}
			return understat.Save(path, res.Rows)
		},
	}
}

// RebuildStage rebuilds the store. It is required: nothing runs after a
// failed rebuild.
func RebuildStage(r Rebuilder) Stage {
	return Stage{
		Name:     "rebuild",
		Required: true,
		Run: func(ctx context.Context) error {
			_, err := r.Rebuild(ctx)
			return err
		},
	}
}
