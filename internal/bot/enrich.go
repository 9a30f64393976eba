package bot

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy   = bluemonday.StrictPolicy()
	spaceCollapse = regexp.MustCompile(`\s+`)
)

// cleanText strips any markup that leaked through extraction and collapses
// whitespace.
func cleanText(s string) string {
	s = stripPolicy.Sanitize(s)
	return strings.TrimSpace(spaceCollapse.ReplaceAllString(s, " "))
}

// fundingTerms are the vocabulary of grant announcements; their presence in a
// text is the relevance signal used for both keyword tagging and scoring.
var fundingTerms = []string{
	"grant", "funding", "opportunity", "application", "proposal",
	"award", "fellowship", "scholarship", "call", "tender",
}

func extractKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, term := range fundingTerms {
		if strings.Contains(lower, term) {
			found = append(found, term)
		}
	}
	return found
}

var (
	amountRangeRe  = regexp.MustCompile(`(?i)(\$|USD|EUR|€|GBP|£)\s*([\d,]+(?:\.\d+)?)\s*([km])?\s*(?:-|–|to)\s*(?:\$|USD|EUR|€|GBP|£)?\s*([\d,]+(?:\.\d+)?)\s*([km])?`)
	amountSingleRe = regexp.MustCompile(`(?i)(\$|USD|EUR|€|GBP|£)\s*([\d,]+(?:\.\d+)?)\s*([km])?`)
)

func currencyCode(sym string) string {
	switch strings.ToUpper(sym) {
	case "€", "EUR":
		return "EUR"
	case "£", "GBP":
		return "GBP"
	default:
		return "USD"
	}
}

func parseNumber(digits, suffix string) float64 {
	n, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(suffix) {
	case "k":
		n *= 1_000
	case "m":
		n *= 1_000_000
	}
	return n
}

// parseAmount pulls a funding amount or range out of free text. A single
// amount sets both bounds.
func parseAmount(text string) (min, max float64, currency string) {
	if m := amountRangeRe.FindStringSubmatch(text); m != nil {
		lo := parseNumber(m[2], m[3])
		hi := parseNumber(m[4], m[5])
		return lo, hi, currencyCode(m[1])
	}
	if m := amountSingleRe.FindStringSubmatch(text); m != nil {
		n := parseNumber(m[2], m[3])
		return n, n, currencyCode(m[1])
	}
	return 0, 0, ""
}

var deadlinePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`), "2006-01-02"},
	{regexp.MustCompile(`\b(\d{1,2} (?:January|February|March|April|May|June|July|August|September|October|November|December) \d{4})\b`), "2 January 2006"},
	{regexp.MustCompile(`\b((?:January|February|March|April|May|June|July|August|September|October|November|December) \d{1,2}, \d{4})\b`), "January 2, 2006"},
	{regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`), "2/1/2006"},
}

// parseDeadline extracts the first recognizable date from free text. Returns
// nil when no pattern matches; callers treat that as "no deadline known".
func parseDeadline(text string) *time.Time {
	for _, p := range deadlinePatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			if t, err := time.Parse(p.layout, m[1]); err == nil {
				return &t
			}
		}
	}
	return nil
}
