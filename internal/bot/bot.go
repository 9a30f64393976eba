package bot

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/parjafrica/good/internal/models"
)

type Status string

const (
	StatusActive      Status = "active"
	StatusPaused      Status = "paused"
	StatusError       Status = "error"
	StatusMaintenance Status = "maintenance"
)

type Config struct {
	BotID   string
	Name    string
	Country string

	// MaxPagesPerCrawl bounds a single browser crawl of one target.
	MaxPagesPerCrawl int
	// PageDelay is the pause between page fetches within one crawl.
	PageDelay time.Duration
	// TargetDelay is the pause between targets within one cycle.
	TargetDelay time.Duration

	ScreenshotDir      string
	ScreenshotsEnabled bool
	// BrowserEnabled gates headless Chrome startup. With it off, browser
	// targets are skipped and screenshots are never taken.
	BrowserEnabled bool
}

func (c *Config) applyDefaults() {
	if c.BotID == "" {
		c.BotID = "south_sudan_bot"
	}
	if c.Name == "" {
		c.Name = "South Sudan Opportunity Bot"
	}
	if c.Country == "" {
		c.Country = "South Sudan"
	}
	if c.MaxPagesPerCrawl <= 0 {
		c.MaxPagesPerCrawl = 25
	}
	if c.PageDelay <= 0 {
		c.PageDelay = 2 * time.Second
	}
	if c.TargetDelay <= 0 {
		c.TargetDelay = 10 * time.Second
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = "screenshots"
	}
}

// CrawlStore is the persistence surface a crawl needs: the visited-URL set
// for its domain and a way to log each page it fetches.
type CrawlStore interface {
	VisitedURLs(ctx context.Context, domain string) ([]string, error)
	LogCrawl(ctx context.Context, url, domain, targetName string) error
}

// Bot crawls configured targets for one country and turns their pages into
// opportunity candidates. It owns both fetch backends and its own error ring.
type Bot struct {
	cfg        Config
	light      Fetcher
	browser    *BrowserFetcher
	extractors *ExtractorRegistry
	errs       *errorRing

	mu          sync.Mutex
	status      Status
	lastRun     *time.Time
	totalFound  int
	successRate float64
}

// New builds a bot. When the browser backend is enabled and fails to start,
// the bot comes back in error state together with the startup error, so the
// caller can still report it.
func New(ctx context.Context, cfg Config) (*Bot, error) {
	cfg.applyDefaults()

	b := &Bot{
		cfg:        cfg,
		light:      NewCollyFetcher(),
		extractors: NewExtractorRegistry(),
		errs:       newErrorRing(),
		status:     StatusActive,
	}

	if cfg.BrowserEnabled {
		browser, err := NewBrowserFetcher(ctx)
		if err != nil {
			b.status = StatusError
			b.errs.Record("browser startup: %v", err)
			return b, err
		}
		b.browser = browser
	}
	return b, nil
}

func (b *Bot) Config() Config           { return b.cfg }
func (b *Bot) Browser() *BrowserFetcher { return b.browser }

func (b *Bot) RecordError(format string, args ...any) { b.errs.Record(format, args...) }

func (b *Bot) SetStatus(s Status) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
}

func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// NoteCycle records the outcome of a completed cycle for status reporting.
func (b *Bot) NoteCycle(found int, targetsOK, targetsTotal int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.lastRun = &now
	b.totalFound += found
	if targetsTotal > 0 {
		b.successRate = float64(targetsOK) / float64(targetsTotal)
	}
}

// Snapshot is the operator-visible bot state.
type Snapshot struct {
	BotID        string
	Name         string
	Country      string
	Status       Status
	LastRun      *time.Time
	TotalFound   int
	ErrorCount   int
	SuccessRate  float64
	RecentErrors []ErrorRecord
}

func (b *Bot) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		BotID:        b.cfg.BotID,
		Name:         b.cfg.Name,
		Country:      b.cfg.Country,
		Status:       b.status,
		LastRun:      b.lastRun,
		TotalFound:   b.totalFound,
		ErrorCount:   b.errs.Total(),
		SuccessRate:  b.successRate,
		RecentErrors: b.errs.Recent(),
	}
}

func (b *Bot) State() models.BotState {
	snap := b.Snapshot()
	return models.BotState{
		BotID:                   snap.BotID,
		Name:                    snap.Name,
		Country:                 snap.Country,
		Status:                  string(snap.Status),
		LastRun:                 snap.LastRun,
		TotalOpportunitiesFound: snap.TotalFound,
		ErrorCount:              snap.ErrorCount,
		SuccessRate:             snap.SuccessRate,
	}
}

// CrawlTarget dispatches a target to the right backend and returns its
// candidates. API targets are fetched the same way as scraping targets; their
// payloads are HTML listings, not structured APIs.
func (b *Bot) CrawlTarget(ctx context.Context, store CrawlStore, target models.SearchTarget) ([]Candidate, error) {
	switch target.Type {
	case models.TargetBrowser:
		if b.browser == nil {
			log.Printf("bot %s: skipping browser target %s (browser disabled)", b.cfg.BotID, target.Name)
			return nil, nil
		}
		return b.crawlWithBrowser(ctx, store, target)
	case models.TargetAPI, models.TargetScraping:
		return b.scrapeTarget(ctx, target)
	default:
		return nil, fmt.Errorf("target %s: unknown type %q", target.Name, target.Type)
	}
}

// scrapeTarget does a single lightweight fetch of the target URL. An error
// status from the server yields no candidates but is not a crawl failure.
func (b *Bot) scrapeTarget(ctx context.Context, target models.SearchTarget) ([]Candidate, error) {
	fd, err := b.light.Fetch(ctx, target.URL, target.Headers)
	if err != nil {
		b.errs.Record("fetch %s: %v", target.Name, err)
		return nil, err
	}
	if fd.Doc == nil {
		log.Printf("bot %s: target %s answered %d", b.cfg.BotID, target.Name, fd.StatusCode)
		return nil, nil
	}

	cands := b.extractors.For(target).Extract(fd.Doc, target, target.URL)
	log.Printf("bot %s: target %s produced %d candidates", b.cfg.BotID, target.Name, len(cands))
	return cands, nil
}

// crawlWithBrowser walks the target's domain breadth-first through rendered
// pages, up to the configured page cap. Every successfully rendered page is
// logged so later cycles resume where this one stopped.
func (b *Bot) crawlWithBrowser(ctx context.Context, store CrawlStore, target models.SearchTarget) ([]Candidate, error) {
	parsed, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("target %s: bad url: %w", target.Name, err)
	}
	domain := parsed.Host

	visited, err := store.VisitedURLs(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("target %s: visited set: %w", target.Name, err)
	}

	fr := newFrontier(domain, visited)
	fr.Push(target.URL)

	waitSel := waitSelectorFor(target)
	extractor := b.extractors.For(target)

	var cands []Candidate
	pages := 0
	for pages < b.cfg.MaxPagesPerCrawl {
		pageURL, ok := fr.Pop()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return cands, err
		}

		fd, err := b.browser.FetchRendered(ctx, pageURL, waitSel)
		if err != nil {
			b.errs.Record("render %s: %v", pageURL, err)
			continue
		}
		pages++

		cands = append(cands, extractor.Extract(fd.Doc, target, pageURL)...)
		for _, link := range discoverLinks(fd.Doc, pageURL) {
			fr.Push(link)
		}

		if err := store.LogCrawl(ctx, pageURL, domain, target.Name); err != nil {
			b.errs.Record("log crawl %s: %v", pageURL, err)
		}

		if fr.Len() > 0 && pages < b.cfg.MaxPagesPerCrawl {
			select {
			case <-ctx.Done():
				return cands, ctx.Err()
			case <-time.After(b.cfg.PageDelay):
			}
		}
	}

	log.Printf("bot %s: crawled %d pages of %s, %d candidates", b.cfg.BotID, pages, domain, len(cands))
	return cands, nil
}

// Close releases both fetch backends.
func (b *Bot) Close() {
	b.light.Close()
	if b.browser != nil {
		b.browser.Close()
	}
}
