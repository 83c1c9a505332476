package commands

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/fortuna/footballdb/internal/cache"
	"github.com/fortuna/footballdb/internal/config"
	"github.com/fortuna/footballdb/internal/ingest/footballdata"
	"github.com/fortuna/footballdb/internal/ingest/understat"
)

var (
	footballDataSeason string
	understatSeason    string
	refreshXG          bool
)

func init() {
	scrapeLeaguesCmd.Flags().StringVar(&footballDataSeason, "season-id", "", "football-data season id, e.g. 2526 (overrides config)")
	scrapeXGCmd.Flags().StringVar(&understatSeason, "season", "", "understat season start year, e.g. 2025 (overrides config)")
	scrapeXGCmd.Flags().BoolVar(&refreshXG, "refresh", false, "Drop cached understat payloads before scraping")

	scrapeCmd.AddCommand(scrapeLeaguesCmd, scrapeXGCmd)
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Downloads source files into the raw data directory.",
}

var scrapeLeaguesCmd = &cobra.Command{
	Use:   "leagues [--season-id <id>]",
	Short: "Downloads league result CSVs from football-data.co.uk.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if footballDataSeason != "" {
			cfg.FootballData.SeasonID = footballDataSeason
		}

		res, err := newLeagueScraper(cfg).Run(cmd.Context())
		if err != nil {
			return err
		}

		log.Printf("✓ %d files downloaded, %d pages failed, %d pages without links", len(res.Downloads), len(res.Errors), len(res.Empty))
		if len(res.Downloads) == 0 {
			return fmt.Errorf("no league files downloaded")
		}
		return nil
	},
}

var scrapeXGCmd = &cobra.Command{
	Use:   "xg [--season <year>] [--refresh]",
	Short: "Scrapes understat match xG and writes the xG CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if understatSeason != "" {
			cfg.Understat.Season = understatSeason
		}

		scraper, closeFn := newXGScraper(cmd.Context(), cfg, refreshXG)
		defer closeFn()

		res, err := scraper.Run(cmd.Context())
		if err != nil {
			return err
		}
		if err := understat.Save(xgPath(cfg), res.Rows); err != nil {
			return err
		}

		log.Printf("✓ %d xG rows written to %s", len(res.Rows), xgPath(cfg))
		return nil
	},
}

func newLeagueScraper(cfg *config.Config) *footballdata.Scraper {
	return footballdata.New(cfg.FootballData, cfg.Paths.RawDir, log.New(log.Writer(), "[footballdata] ", log.LstdFlags))
}

// newXGScraper builds the understat scraper over headless Chrome, with the
// Redis payload cache when a Redis URL is configured. refresh empties the
// cache first.
func newXGScraper(ctx context.Context, cfg *config.Config, refresh bool) (*understat.Scraper, func()) {
	fetcher := understat.NewChromeFetcher(cfg.Understat)
	closeFn := fetcher.Close

	var payloads understat.Cache
	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, scraping without cache: %v", err)
		} else {
			rc := cache.NewRedisCache(client)
			if refresh {
				if n, err := rc.Invalidate(ctx, understat.CachePattern); err != nil {
					log.Printf("⚠️  Failed to clear cached payloads: %v", err)
				} else {
					log.Printf("✓ Cleared %d cached payloads", n)
				}
			}
			payloads = rc
			closeFn = func() {
				fetcher.Close()
				client.Close()
			}
		}
	}

	scraper := understat.NewScraper(cfg.Understat, fetcher, payloads, log.New(log.Writer(), "[understat] ", log.LstdFlags))
	return scraper, closeFn
}
