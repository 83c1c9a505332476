// Package footballdata downloads league result CSVs from football-data.co.uk.
package footballdata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/fortuna/footballdb/internal/config"
)

// Scraper walks the configured league pages and saves matching CSV links.
type Scraper struct {
	cfg    config.FootballDataConfig
	outDir string
	client *resty.Client
	logger *log.Logger
}

// Download is one saved file.
type Download struct {
	Page string `json:"page"`
	URL  string `json:"url"`
	Path string `json:"path"`
}

// PageError is a page or download that failed. Scraping continues after it.
type PageError struct {
	Page string `json:"page"`
	URL  string `json:"url"`
	Err  string `json:"error"`
}

// Result lists what one scrape saved and what it skipped.
type Result struct {
	Downloads []Download  `json:"downloads"`
	Errors    []PageError `json:"errors"`
	Empty     []string    `json:"empty_pages"`
}

// New creates a scraper that saves files into outDir.
func New(cfg config.FootballDataConfig, outDir string, logger *log.Logger) *Scraper {
	if logger == nil {
		logger = log.New(log.Writer(), "[footballdata] ", log.LstdFlags)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Scraper{
		cfg:    cfg,
		outDir: outDir,
		client: client,
		logger: logger,
	}
}

// Run scrapes every configured page. Only a missing output directory that
// cannot be created is returned as an error.
func (s *Scraper) Run(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	s.logger.Printf("Starting download for season %s into %s", s.cfg.SeasonID, s.outDir)

	result := &Result{}
	for _, page := range s.cfg.Pages {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pageURL := resolve(base, page.Page)
		links, err := s.fetchLinks(ctx, pageURL, page)
		if err != nil {
			s.logger.Printf("⚠️  Error accessing %s: %v", page.Page, err)
			result.Errors = append(result.Errors, PageError{Page: page.Page, URL: pageURL, Err: err.Error()})
			continue
		}

		if len(links) == 0 {
			s.logger.Printf("⚠️  No matching files found on page: %s", page.Page)
			result.Empty = append(result.Empty, page.Page)
			continue
		}

		for _, href := range links {
			fileURL := resolve(base, href)
			saved, err := s.download(ctx, fileURL)
			if err != nil {
				s.logger.Printf("⚠️  Failed to download %s: %v", fileURL, err)
				result.Errors = append(result.Errors, PageError{Page: page.Page, URL: fileURL, Err: err.Error()})
				continue
			}
			s.logger.Printf("✓ Saved %s", saved)
			result.Downloads = append(result.Downloads, Download{Page: page.Page, URL: fileURL, Path: saved})
		}
	}

	s.logger.Printf("Download finished: %d files, %d errors", len(result.Downloads), len(result.Errors))
	return result, nil
}

func (s *Scraper) fetchLinks(ctx context.Context, pageURL string, page config.LeaguePage) ([]string, error) {
	resp, err := s.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode(), pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return MatchLinks(doc, page, s.cfg.SeasonID), nil
}

// MatchLinks returns the CSV hrefs on a league page worth downloading.
//
// Main league pages list one file per season and division, so a link must
// carry the season id and one of the page's target file names. Pages marked
// AnyCSV publish a single all-seasons file and keep every CSV that is not a
// fixture list.
func MatchLinks(doc *goquery.Document, page config.LeaguePage, seasonID string) []string {
	var links []string
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		lower := strings.ToLower(href)
		if !strings.HasSuffix(lower, ".csv") || seen[href] {
			return
		}

		if !matches(href, lower, page, seasonID) {
			return
		}
		seen[href] = true
		links = append(links, href)
	})

	return links
}

func matches(href, lower string, page config.LeaguePage, seasonID string) bool {
	if page.AnyCSV {
		return !strings.Contains(lower, "fixture")
	}
	if !strings.Contains(href, seasonID) {
		return false
	}
	for _, target := range page.Targets {
		if strings.Contains(href, target) {
			return true
		}
	}
	return false
}

// download saves fileURL under its base name. The body is written to a
// temporary file first so an interrupted transfer never leaves a truncated CSV.
func (s *Scraper) download(ctx context.Context, fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("no file name in %s", fileURL)
	}

	resp, err := s.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(fileURL)
	if err != nil {
		return "", err
	}
	body := resp.RawBody()
	defer body.Close()
	if !resp.IsSuccess() {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode(), fileURL)
	}

	target := filepath.Join(s.outDir, name)
	tmp, err := os.CreateTemp(s.outDir, name+".*.part")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", err
	}

	return target, nil
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
