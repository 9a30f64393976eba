package bot

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// FetchedDocument is one retrieved page. Doc is nil when the server answered
// with an error status; StatusCode is set whenever a response came back.
type FetchedDocument struct {
	URL        string
	StatusCode int
	Doc        *goquery.Document
}

// Fetcher retrieves a page as a parsed document. The lightweight HTTP
// implementation covers most targets; the browser implementation handles
// pages that only render under JavaScript.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, headers map[string]string) (*FetchedDocument, error)
	Close()
}
