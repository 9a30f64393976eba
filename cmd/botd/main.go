package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/parjafrica/good/internal/api"
	"github.com/parjafrica/good/internal/bot"
	"github.com/parjafrica/good/internal/db"
	"github.com/parjafrica/good/internal/verify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	store := db.NewStore(pool)

	cfg := bot.Config{
		BotID:              envOr("BOT_ID", "south_sudan_bot"),
		Country:            envOr("BOT_COUNTRY", "South Sudan"),
		MaxPagesPerCrawl:   envInt("MAX_PAGES_PER_CRAWL", 25),
		ScreenshotDir:      envOr("SCREENSHOT_DIR", "screenshots"),
		ScreenshotsEnabled: envBool("SCREENSHOTS_ENABLED", true),
		BrowserEnabled:     envBool("BROWSER_ENABLED", true),
	}

	b, err := bot.New(ctx, cfg)
	if err != nil {
		// The bot stays up in error state so operators can see why.
		log.Printf("bot startup degraded: %v", err)
	}
	defer b.Close()

	manager := bot.NewManager(b, pool, store)
	go manager.Run(ctx)

	verifier := verify.NewVerifier(store)
	service := verify.NewService(verifier)
	go service.Run(ctx)

	server := api.NewServer(manager)
	go func() {
		addr := ":" + envOr("PORT", "8080")
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
