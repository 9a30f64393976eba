package bot

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/parjafrica/good/internal/models"
)

// Candidate is a scraped opportunity before deduplication and persistence.
type Candidate struct {
	Title       string
	Description string
	Deadline    *time.Time
	AmountMin   float64
	AmountMax   float64
	Currency    string
	SourceURL   string
	SourceName  string
	Country     string
	Sector      string
	Keywords    []string
	ContentHash string
}

// Extractor turns a fetched page into zero or more opportunity candidates.
// Implementations are site-specific; the registry picks one per target.
type Extractor interface {
	Extract(doc *goquery.Document, target models.SearchTarget, pageURL string) []Candidate
}

// ExtractorRegistry maps target names to their site-specific extractors.
// Targets without a named extractor fall back to the generic selector-driven
// one when they carry selectors, and to a no-op otherwise.
type ExtractorRegistry struct {
	byName map[string]Extractor
}

func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{
		byName: map[string]Extractor{
			"UN Jobs - South Sudan":      unJobsExtractor{},
			"FundsforNGOs - South Sudan": fundsForNGOsExtractor{},
		},
	}
}

func (r *ExtractorRegistry) Register(targetName string, e Extractor) {
	r.byName[targetName] = e
}

func (r *ExtractorRegistry) For(target models.SearchTarget) Extractor {
	if e, ok := r.byName[target.Name]; ok {
		return e
	}
	if len(target.Selectors) > 0 && target.Selectors["item"] != "" {
		return selectorExtractor{}
	}
	return noopExtractor{}
}

// waitSelectorFor returns the CSS selector that signals a rendered page is
// ready for extraction, or "" when the target has no known content marker.
func waitSelectorFor(target models.SearchTarget) string {
	if sel := target.Selectors["wait"]; sel != "" {
		return sel
	}
	switch target.Name {
	case "UN Jobs - South Sudan":
		return "div.job-container"
	case "FundsforNGOs - South Sudan":
		return "article.article-list"
	}
	return ""
}

// unJobsExtractor reads job postings from unjobs.org listing pages.
type unJobsExtractor struct{}

func (unJobsExtractor) Extract(doc *goquery.Document, target models.SearchTarget, pageURL string) []Candidate {
	var cands []Candidate
	doc.Find("div.job-container").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a.jobtitle").First()
		if link.Length() == 0 {
			link = sel.Find("a").First()
		}
		title := cleanText(link.Text())
		if title == "" {
			title = cleanText(sel.Find("h2, h3").First().Text())
		}
		if title == "" {
			return
		}

		href, _ := link.Attr("href")
		desc := cleanText(sel.Find("p").First().Text())
		if desc == "" {
			desc = title
		}

		cands = append(cands, buildCandidate(title, desc, href, pageURL, target))
	})
	return cands
}

// fundsForNGOsExtractor reads grant announcements from fundsforngos.org.
type fundsForNGOsExtractor struct{}

func (fundsForNGOsExtractor) Extract(doc *goquery.Document, target models.SearchTarget, pageURL string) []Candidate {
	var cands []Candidate
	doc.Find("article").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("h2 a, h3 a").First()
		title := cleanText(link.Text())
		if title == "" {
			return
		}

		href, _ := link.Attr("href")
		desc := cleanText(sel.Find(".entry-content p, .excerpt, p").First().Text())
		if desc == "" {
			desc = title
		}

		cands = append(cands, buildCandidate(title, desc, href, pageURL, target))
	})
	return cands
}

// selectorExtractor is driven entirely by the target's configured selectors:
// "item" scopes each candidate, "title" / "link" / "description" / "deadline"
// pick fields within it.
type selectorExtractor struct{}

func (selectorExtractor) Extract(doc *goquery.Document, target models.SearchTarget, pageURL string) []Candidate {
	sels := target.Selectors
	var cands []Candidate
	doc.Find(sels["item"]).Each(func(_ int, sel *goquery.Selection) {
		titleSel := sel
		if s := sels["title"]; s != "" {
			titleSel = sel.Find(s).First()
		}
		title := cleanText(titleSel.Text())
		if title == "" {
			return
		}

		var href string
		if s := sels["link"]; s != "" {
			href, _ = sel.Find(s).First().Attr("href")
		} else {
			href, _ = sel.Find("a").First().Attr("href")
		}

		desc := title
		if s := sels["description"]; s != "" {
			if d := cleanText(sel.Find(s).First().Text()); d != "" {
				desc = d
			}
		}

		c := buildCandidate(title, desc, href, pageURL, target)
		if s := sels["deadline"]; s != "" {
			if dl := parseDeadline(sel.Find(s).First().Text()); dl != nil {
				c.Deadline = dl
			}
		}
		cands = append(cands, c)
	})
	return cands
}

type noopExtractor struct{}

func (noopExtractor) Extract(*goquery.Document, models.SearchTarget, string) []Candidate {
	return nil
}

// buildCandidate fills the shared fields every extractor produces: resolved
// source URL, parsed amount and deadline from the description, keywords, and
// the content hash.
func buildCandidate(title, desc, href, pageURL string, target models.SearchTarget) Candidate {
	c := Candidate{
		Title:       title,
		Description: desc,
		SourceURL:   resolveURL(pageURL, href),
		SourceName:  target.Name,
		Country:     target.Country,
		Currency:    "USD",
		Keywords:    extractKeywords(title + " " + desc),
	}
	c.AmountMin, c.AmountMax, c.Currency = parseAmount(desc)
	if c.Currency == "" {
		c.Currency = "USD"
	}
	c.Deadline = parseDeadline(desc)
	c.ContentHash = ContentHash(c.Title, c.SourceName, c.Description)
	return c
}

func resolveURL(pageURL, href string) string {
	if href == "" {
		return pageURL
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return pageURL
	}
	return base.ResolveReference(ref).String()
}
