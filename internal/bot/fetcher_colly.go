package bot

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const (
	fetchTimeout = 30 * time.Second
	botUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// CollyFetcher is the lightweight HTTP fetcher. A fresh collector is cloned
// per request so per-target headers never bleed across fetches; the transport
// is shared so Close can drop idle connections.
type CollyFetcher struct {
	base      *colly.Collector
	transport *http.Transport
}

func NewCollyFetcher() *CollyFetcher {
	tr := &http.Transport{
		MaxIdleConns:    10,
		IdleConnTimeout: 30 * time.Second,
	}
	c := colly.NewCollector(
		colly.UserAgent(botUserAgent),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(fetchTimeout)
	c.WithTransport(tr)
	return &CollyFetcher{base: c, transport: tr}
}

func (f *CollyFetcher) Fetch(ctx context.Context, pageURL string, headers map[string]string) (*FetchedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.base.Clone()

	c.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})

	fd := &FetchedDocument{URL: pageURL}
	var fetchErr error
	var docErr error

	c.OnResponse(func(r *colly.Response) {
		fd.StatusCode = r.StatusCode
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			docErr = fmt.Errorf("parse %s: %w", pageURL, err)
			return
		}
		fd.Doc = doc
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			// The server answered with an error status. That is a page
			// result, not a fetch failure.
			fd.StatusCode = r.StatusCode
			return
		}
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil && fd.StatusCode == 0 {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, fetchErr)
	}
	if docErr != nil {
		return nil, docErr
	}
	return fd, nil
}

// Close drops idle connections held by the shared transport.
func (f *CollyFetcher) Close() {
	f.transport.CloseIdleConnections()
}
