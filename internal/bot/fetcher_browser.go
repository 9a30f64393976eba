package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
)

const (
	renderTimeout     = 90 * time.Second
	renderSettleDelay = 5 * time.Second
	screenshotTimeout = 60 * time.Second
	networkIdleWindow = 500 * time.Millisecond
)

// BrowserFetcher drives one headless Chrome per bot instance. Each page load
// runs in a fresh tab derived from the shared browser context.
type BrowserFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

// NewBrowserFetcher starts the browser eagerly so a missing or broken Chrome
// install fails the bot at startup instead of mid-crawl.
func NewBrowserFetcher(ctx context.Context) (*BrowserFetcher, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("browser start failed: %w", err)
	}

	return &BrowserFetcher{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
	}, nil
}

// Fetch renders a page in a new tab and returns the post-JavaScript DOM.
// With a wait selector the tab blocks until that element exists; without one
// it settles for a fixed delay.
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string, _ map[string]string) (*FetchedDocument, error) {
	return f.FetchRendered(ctx, pageURL, "")
}

func (f *BrowserFetcher) FetchRendered(ctx context.Context, pageURL, waitSelector string) (*FetchedDocument, error) {
	tabCtx, tabCancel := chromedp.NewContext(f.browserCtx)
	defer tabCancel()

	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, renderTimeout)
	defer timeoutCancel()

	actions := []chromedp.Action{chromedp.Navigate(pageURL)}
	if waitSelector != "" {
		actions = append(actions, chromedp.WaitReady(waitSelector, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.Sleep(renderSettleDelay))
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered %s: %w", pageURL, err)
	}
	return &FetchedDocument{URL: pageURL, StatusCode: 200, Doc: doc}, nil
}

// CaptureScreenshot renders the page and writes a full-page PNG under dir,
// returning the file path.
func (f *BrowserFetcher) CaptureScreenshot(ctx context.Context, pageURL, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("screenshot dir: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(f.browserCtx)
	defer tabCancel()

	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, screenshotTimeout)
	defer timeoutCancel()

	idle := newNetworkIdleWaiter(tabCtx)
	var buf []byte
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		idle.wait(networkIdleWindow),
		chromedp.FullScreenshot(&buf, 90),
	)
	if err != nil {
		return "", fmt.Errorf("screenshot %s: %w", pageURL, err)
	}

	path := filepath.Join(dir, uuid.New().String()+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("screenshot write: %w", err)
	}
	return path, nil
}

// networkIdleWaiter tracks in-flight requests from CDP network events so a
// screenshot can wait for the page to stop loading.
type networkIdleWaiter struct {
	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	activity chan struct{}
}

// newNetworkIdleWaiter must be attached to the tab context before navigation
// starts, or early requests are missed.
func newNetworkIdleWaiter(tabCtx context.Context) *networkIdleWaiter {
	w := &networkIdleWaiter{
		inflight: make(map[network.RequestID]struct{}),
		activity: make(chan struct{}, 1),
	}
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			w.mu.Lock()
			w.inflight[e.RequestID] = struct{}{}
			w.mu.Unlock()
			w.note()
		case *network.EventLoadingFinished:
			w.mu.Lock()
			delete(w.inflight, e.RequestID)
			w.mu.Unlock()
			w.note()
		case *network.EventLoadingFailed:
			w.mu.Lock()
			delete(w.inflight, e.RequestID)
			w.mu.Unlock()
			w.note()
		}
	})
	return w
}

func (w *networkIdleWaiter) note() {
	select {
	case w.activity <- struct{}{}:
	default:
	}
}

func (w *networkIdleWaiter) pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inflight)
}

// wait blocks until no request has been in flight for a full quiet window.
// The surrounding context deadline bounds the whole wait.
func (w *networkIdleWaiter) wait(window time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		timer := time.NewTimer(window)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.activity:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(window)
			case <-timer.C:
				if w.pending() == 0 {
					return nil
				}
				timer.Reset(window)
			}
		}
	})
}

// Close shuts the browser and its allocator down.
func (f *BrowserFetcher) Close() {
	f.cancel()
	f.allocCancel()
}
