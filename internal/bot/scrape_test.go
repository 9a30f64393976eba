package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parjafrica/good/internal/models"
)

func testBot(t *testing.T) *Bot {
	t.Helper()
	b, err := New(context.Background(), Config{BrowserEnabled: false})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestScrapeTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>
			<div class="listing">
				<h2>Agricultural Grant Programme</h2>
				<a href="/grants/7">apply</a>
				<p>Funding proposals for smallholder farmers, up to $100,000.</p>
			</div>
		</body></html>`))
	}))
	defer srv.Close()

	b := testBot(t)
	target := models.SearchTarget{
		Name:    "Test Source",
		URL:     srv.URL,
		Country: "South Sudan",
		Type:    models.TargetScraping,
		Selectors: map[string]string{
			"item":        "div.listing",
			"title":       "h2",
			"description": "p",
		},
	}

	cands, err := b.CrawlTarget(context.Background(), nil, target)
	if err != nil {
		t.Fatalf("CrawlTarget: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
	if cands[0].Title != "Agricultural Grant Programme" {
		t.Errorf("title = %q", cands[0].Title)
	}
	if cands[0].AmountMax != 100000 {
		t.Errorf("amount = %v", cands[0].AmountMax)
	}
}

func TestScrapeTargetErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	b := testBot(t)
	target := models.SearchTarget{
		Name: "Gone Source",
		URL:  srv.URL,
		Type: models.TargetScraping,
	}

	cands, err := b.CrawlTarget(context.Background(), nil, target)
	if err != nil {
		t.Fatalf("error status should not be a crawl failure: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("got %d candidates from a 404", len(cands))
	}
	if b.Snapshot().ErrorCount != 0 {
		t.Errorf("a 404 should not grow the error count")
	}
}

func TestScrapeTargetUnreachable(t *testing.T) {
	b := testBot(t)
	target := models.SearchTarget{
		Name: "Dead Source",
		URL:  "http://127.0.0.1:1/nothing",
		Type: models.TargetScraping,
	}

	if _, err := b.CrawlTarget(context.Background(), nil, target); err == nil {
		t.Fatal("expected fetch error")
	}
	if b.Snapshot().ErrorCount == 0 {
		t.Error("fetch failure should be recorded")
	}
}

func TestScrapeTargetSendsHeaders(t *testing.T) {
	var gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.Header.Get("Accept-Language")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	b := testBot(t)
	target := models.SearchTarget{
		Name:    "Header Source",
		URL:     srv.URL,
		Type:    models.TargetScraping,
		Headers: map[string]string{"Accept-Language": "en-US"},
	}
	if _, err := b.CrawlTarget(context.Background(), nil, target); err != nil {
		t.Fatal(err)
	}
	if gotLang != "en-US" {
		t.Errorf("Accept-Language = %q", gotLang)
	}
}

func TestBrowserTargetSkippedWhenDisabled(t *testing.T) {
	b := testBot(t)
	target := models.SearchTarget{
		Name: "JS Source",
		URL:  "https://example.org",
		Type: models.TargetBrowser,
	}
	cands, err := b.CrawlTarget(context.Background(), nil, target)
	if err != nil {
		t.Fatalf("disabled browser should skip, not fail: %v", err)
	}
	if cands != nil {
		t.Errorf("expected no candidates, got %v", cands)
	}
}

func TestUnknownTargetType(t *testing.T) {
	b := testBot(t)
	target := models.SearchTarget{Name: "Odd", URL: "https://example.org", Type: "rss"}
	if _, err := b.CrawlTarget(context.Background(), nil, target); err == nil {
		t.Fatal("unknown target type should error")
	}
}
