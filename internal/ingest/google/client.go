package google

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// BaseURL for Google Sports searches
	BaseURL = "https://www.google.com/search"

	// UserAgent for requests
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// MinRequestInterval to prevent rate limiting
	MinRequestInterval = 2 * time.Second

	pageTimeout = 30 * time.Second
)

// Client renders Google Sports result pages in a headless browser
type Client struct {
	limiter *rate.Limiter
	log     *logrus.Entry

	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewClient creates a new Google Sports scraper client. The browser is only
// started on the first fetch.
func NewClient(log *logrus.Entry) *Client {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Client{
		limiter:  rate.NewLimiter(rate.Every(MinRequestInterval), 1),
		log:      log,
		allocCtx: allocCtx,
		cancel:   cancel,
	}
}

// Close releases resources
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

// FetchLiveGames fetches the rendered page listing today's NBA games
func (c *Client) FetchLiveGames(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.fetch(ctx, "nba games today")
}

func (c *Client) fetch(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	browserCtx, cancelBrowser := chromedp.NewContext(c.allocCtx)
	defer cancelBrowser()

	// Tie the tab to the caller's deadline.
	go func() {
		select {
		case <-ctx.Done():
			cancelBrowser()
		case <-browserCtx.Done():
		}
	}()

	var htmlContent string
	target := BaseURL + "?q=" + url.QueryEscape(query)

	start := time.Now()
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(target),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		chromedp.Sleep(time.Second), // let scripts render the score cards
		chromedp.OuterHTML(`html`, &htmlContent, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp error: %w", err)
	}
	if htmlContent == "" {
		return "", fmt.Errorf("empty HTML content returned")
	}

	c.log.WithFields(logrus.Fields{
		"query":    query,
		"bytes":    len(htmlContent),
		"duration": time.Since(start).String(),
	}).Debug("Fetched Google Sports page")
	return htmlContent, nil
}

// ParseHTML converts raw HTML to a goquery Document for parsing
func ParseHTML(htmlContent string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}
