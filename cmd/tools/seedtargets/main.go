package main

import (
	"context"
	"log"

	"github.com/parjafrica/good/internal/bot"
	"github.com/parjafrica/good/internal/db"
)

// Seeds the search_targets table from the embedded registry. Safe to re-run;
// rows are matched by name.
func main() {
	ctx := context.Background()

	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	targets, err := bot.SeedTargets()
	if err != nil {
		log.Fatalf("registry: %v", err)
	}

	store := db.NewStore(pool)
	for _, t := range targets {
		if err := store.UpsertTarget(ctx, t); err != nil {
			log.Fatalf("upsert %s: %v", t.Name, err)
		}
		log.Printf("seeded target %s (%s)", t.Name, t.Type)
	}
	log.Printf("done, %d targets", len(targets))
}
