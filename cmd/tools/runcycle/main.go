package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/parjafrica/good/internal/bot"
	"github.com/parjafrica/good/internal/db"
)

// Runs a single crawl cycle and exits. Useful for testing targets without
// standing up the daemon.
func main() {
	country := flag.String("country", "South Sudan", "country whose targets to crawl")
	browser := flag.Bool("browser", true, "enable the headless browser backend")
	screenshots := flag.Bool("screenshots", false, "capture screenshots of new opportunities")
	maxPages := flag.Int("max-pages", 25, "page cap per browser crawl")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall cycle timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	b, err := bot.New(ctx, bot.Config{
		Country:            *country,
		BrowserEnabled:     *browser,
		ScreenshotsEnabled: *screenshots,
		MaxPagesPerCrawl:   *maxPages,
	})
	if err != nil {
		log.Fatalf("bot: %v", err)
	}
	defer b.Close()

	store := db.NewStore(pool)
	manager := bot.NewManager(b, pool, store)

	added, err := manager.RunCycle(ctx)
	if err != nil {
		log.Fatalf("cycle: %v", err)
	}
	log.Printf("cycle complete, %d new opportunities", added)
}
