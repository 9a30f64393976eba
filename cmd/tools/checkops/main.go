package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/parjafrica/good/internal/db"
)

// Prints the most recent opportunities with their verification state.
func main() {
	limit := flag.Int("limit", 20, "number of opportunities to show")
	flag.Parse()

	ctx := context.Background()

	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	opps, err := store.RecentOpportunities(ctx, *limit)
	if err != nil {
		log.Fatalf("query: %v", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Title", "Source", "Deadline", "Score", "Verified", "Scraped"})
	for _, o := range opps {
		deadline := "-"
		if o.Deadline != nil {
			deadline = o.Deadline.Format("2006-01-02")
		}
		t.AppendRow(table.Row{
			truncate(o.Title, 50),
			o.SourceName,
			deadline,
			fmt.Sprintf("%.2f", o.VerificationScore),
			o.IsVerified,
			o.ScrapedAt.Format("2006-01-02 15:04"),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
