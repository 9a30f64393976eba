package bot

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// skippedExtensions are asset and document suffixes that never lead to
// opportunity listings.
var skippedExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".zip", ".xml", ".css", ".js",
}

// frontier is a FIFO crawl queue bounded to a single domain. URLs enter at
// most once: the visited set is pre-seeded from crawl_logs so restarts never
// refetch a page.
type frontier struct {
	domain  string
	queue   []string
	visited map[string]struct{}
}

func newFrontier(domain string, visited []string) *frontier {
	f := &frontier{
		domain:  domain,
		visited: make(map[string]struct{}, len(visited)),
	}
	for _, u := range visited {
		f.visited[u] = struct{}{}
	}
	return f
}

// Push enqueues a URL if it is relevant to this crawl and not yet seen.
// Marking visited at enqueue time keeps duplicates out of the queue itself.
func (f *frontier) Push(rawURL string) bool {
	if !f.relevant(rawURL) {
		return false
	}
	if _, seen := f.visited[rawURL]; seen {
		return false
	}
	f.visited[rawURL] = struct{}{}
	f.queue = append(f.queue, rawURL)
	return true
}

func (f *frontier) Pop() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	u := f.queue[0]
	f.queue = f.queue[1:]
	return u, true
}

func (f *frontier) Len() int {
	return len(f.queue)
}

// relevant accepts only same-domain http(s) URLs that are not static assets.
func (f *frontier) relevant(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	if parsed.Host != f.domain {
		return false
	}
	lowerPath := strings.ToLower(parsed.Path)
	for _, ext := range skippedExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return false
		}
	}
	return true
}

// discoverLinks extracts absolute same-page-base links from an HTML document.
// Relative hrefs resolve against the page URL; fragments are dropped.
func discoverLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		resolved.Fragment = ""
		links = append(links, resolved.String())
	})
	return links
}
