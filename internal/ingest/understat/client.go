package understat

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/fortuna/footballdb/internal/config"
)

// Fetcher returns the raw datesData JSON of one league season.
type Fetcher interface {
	FetchDates(ctx context.Context, league, season string) ([]byte, error)
}

// ChromeFetcher loads understat league pages in headless Chrome and reads
// the datesData variable the page scripts define.
type ChromeFetcher struct {
	baseURL string
	settle  time.Duration

	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewChromeFetcher starts a browser allocator. Call Close when done.
func NewChromeFetcher(cfg config.UnderstatConfig) *ChromeFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromeFetcher{
		baseURL:  cfg.BaseURL,
		settle:   cfg.Settle,
		allocCtx: allocCtx,
		cancel:   cancel,
	}
}

// Close stops the browser
func (c *ChromeFetcher) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *ChromeFetcher) FetchDates(ctx context.Context, league, season string) ([]byte, error) {
	browserCtx, cancel := chromedp.NewContext(c.allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, c.settle+60*time.Second)
	defer cancel()

	// follow the caller's cancellation too
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var payload string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(LeagueURL(c.baseURL, league, season)),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.Sleep(c.settle),
		chromedp.Evaluate(`JSON.stringify(typeof datesData === "undefined" ? null : datesData)`, &payload),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp error: %w", err)
	}
	if payload == "" || payload == "null" {
		return nil, fmt.Errorf("datesData not defined on page")
	}

	return []byte(payload), nil
}

// LeagueURL builds the understat page address of a league season.
func LeagueURL(baseURL, league, season string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return fmt.Sprintf("%s/%s/%s", baseURL, league, season)
}
