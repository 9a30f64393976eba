package bot

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func TestFrontierPush(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want bool
	}{
		{"same domain page", "https://unjobs.org/vacancies/123", true},
		{"other domain", "https://example.com/vacancies/123", false},
		{"pdf asset", "https://unjobs.org/files/report.pdf", false},
		{"uppercase pdf asset", "https://unjobs.org/files/REPORT.PDF", false},
		{"image asset", "https://unjobs.org/logo.png", false},
		{"stylesheet", "https://unjobs.org/app.css", false},
		{"script", "https://unjobs.org/app.js", false},
		{"jpeg asset", "https://unjobs.org/photo.jpeg", false},
		{"mailto", "mailto:jobs@unjobs.org", false},
		{"relative garbage", "://bad url", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fr := newFrontier("unjobs.org", nil)
			if got := fr.Push(tc.url); got != tc.want {
				t.Errorf("Push(%q) = %t, want %t", tc.url, got, tc.want)
			}
		})
	}
}

func TestFrontierVisitedPreseed(t *testing.T) {
	fr := newFrontier("unjobs.org", []string{"https://unjobs.org/seen"})
	if fr.Push("https://unjobs.org/seen") {
		t.Error("pre-seeded URL should not enqueue")
	}
	if !fr.Push("https://unjobs.org/new") {
		t.Error("new URL should enqueue")
	}
	if fr.Push("https://unjobs.org/new") {
		t.Error("URL should enqueue at most once")
	}
}

func TestFrontierFIFO(t *testing.T) {
	fr := newFrontier("unjobs.org", nil)
	urls := []string{
		"https://unjobs.org/a",
		"https://unjobs.org/b",
		"https://unjobs.org/c",
	}
	for _, u := range urls {
		fr.Push(u)
	}
	for _, want := range urls {
		got, ok := fr.Pop()
		if !ok || got != want {
			t.Fatalf("Pop() = %q, %t; want %q", got, ok, want)
		}
	}
	if _, ok := fr.Pop(); ok {
		t.Error("Pop on empty frontier should report empty")
	}
}

func TestDiscoverLinks(t *testing.T) {
	html := `<html><body>
		<a href="/vacancies/1">One</a>
		<a href="https://unjobs.org/vacancies/2">Two</a>
		<a href="#top">Anchor</a>
		<a href="detail?id=3">Three</a>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}

	links := discoverLinks(doc, "https://unjobs.org/duty_stations/south-sudan")
	want := []string{
		"https://unjobs.org/vacancies/1",
		"https://unjobs.org/vacancies/2",
		"https://unjobs.org/duty_stations/detail?id=3",
	}
	if len(links) != len(want) {
		t.Fatalf("got %d links %v, want %d", len(links), links, len(want))
	}
	for i, w := range want {
		if links[i] != w {
			t.Errorf("link[%d] = %q, want %q", i, links[i], w)
		}
	}
}
