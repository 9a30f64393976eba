package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parjafrica/good/internal/models"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if err := ApplyMigrations(ctx, pool); err != nil {
		t.Fatal(err)
	}
	return pool
}

func TestOpportunityRoundTrip(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool)
	ctx := context.Background()

	deadline := time.Now().Add(90 * 24 * time.Hour).Truncate(time.Second)
	opp := models.DonorOpportunity{
		ID:          uuid.New(),
		Title:       "Store Round Trip Grant " + uuid.NewString(),
		Description: "Integration test record.",
		Deadline:    &deadline,
		AmountMin:   1000,
		AmountMax:   5000,
		Currency:    "USD",
		SourceURL:   "https://example.org/" + uuid.NewString(),
		SourceName:  "Integration Source",
		Country:     "South Sudan",
		Keywords:    []string{"grant", "funding"},
		ContentHash: uuid.NewString(),
		ScrapedAt:   time.Now(),
		IsActive:    true,
	}
	inserted, err := store.InsertOpportunity(ctx, opp)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("fresh opportunity should insert")
	}
	t.Cleanup(func() {
		pool.Exec(ctx, "DELETE FROM donor_opportunities WHERE id = $1", opp.ID)
	})

	// Same source_url with a different content hash: the unique constraint
	// swallows the row and the caller must not count it.
	clash := opp
	clash.ID = uuid.New()
	clash.ContentHash = uuid.NewString()
	inserted, err = store.InsertOpportunity(ctx, clash)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("conflicting source_url reported as inserted")
	}

	existing, err := store.ExistingHashes(ctx, []string{opp.ContentHash, "no-such-hash"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := existing[opp.ContentHash]; !ok {
		t.Error("inserted hash not reported as existing")
	}
	if _, ok := existing["no-such-hash"]; ok {
		t.Error("unknown hash reported as existing")
	}

	pending, err := store.UnverifiedOpportunities(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	var found *models.DonorOpportunity
	for i := range pending {
		if pending[i].ID == opp.ID {
			found = &pending[i]
			break
		}
	}
	if found == nil {
		t.Fatal("fresh opportunity should be pending verification")
	}
	if len(found.Keywords) != 2 {
		t.Errorf("keywords did not round-trip: %v", found.Keywords)
	}

	if err := store.UpdateVerificationResult(ctx, opp.ID, 0.85, true, time.Now()); err != nil {
		t.Fatal(err)
	}
	pending, err = store.UnverifiedOpportunities(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range pending {
		if p.ID == opp.ID {
			t.Error("verified opportunity still pending")
		}
	}
}

func TestCrawlLogs(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool)
	ctx := context.Background()

	domain := "crawltest-" + uuid.NewString() + ".example.org"
	url := "https://" + domain + "/page1"
	if err := store.LogCrawl(ctx, url, domain, "Test Target"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, "DELETE FROM crawl_logs WHERE domain = $1", domain)
	})

	urls, err := store.VisitedURLs(ctx, domain)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 1 || urls[0] != url {
		t.Fatalf("got %v", urls)
	}
}

func TestTargetUpsert(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool)
	ctx := context.Background()

	name := "Upsert Test " + uuid.NewString()
	target := models.SearchTarget{
		Name:      name,
		URL:       "https://example.org",
		Country:   "Testland",
		Type:      models.TargetScraping,
		Selectors: map[string]string{"item": "article"},
		Priority:  3,
		IsActive:  true,
	}
	if err := store.UpsertTarget(ctx, target); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, "DELETE FROM search_targets WHERE name = $1", name)
	})

	target.Priority = 9
	if err := store.UpsertTarget(ctx, target); err != nil {
		t.Fatal(err)
	}

	targets, err := store.ActiveTargets(ctx, "Testland")
	if err != nil {
		t.Fatal(err)
	}
	var got *models.SearchTarget
	for i := range targets {
		if targets[i].Name == name {
			got = &targets[i]
			break
		}
	}
	if got == nil {
		t.Fatal("upserted target not listed")
	}
	if got.Priority != 9 {
		t.Errorf("priority = %d, want 9 after upsert", got.Priority)
	}
	if got.Selectors["item"] != "article" {
		t.Errorf("selectors did not round-trip: %v", got.Selectors)
	}
}
