package espn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://site.api.espn.com"
	BasketballNBA  = "apis/site/v2/sports/basketball/nba"

	// ESPN rejects requests that look like Go's default client.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) juno/1.0"
)

// ErrUnavailable is returned when the circuit breaker is open and the
// provider is not being called.
var ErrUnavailable = errors.New("espn: provider unavailable")

// Options configures the ESPN client.
type Options struct {
	BaseURL          string
	RateLimit        float64 // requests per second
	Timeout          time.Duration
	BreakerThreshold int
	BreakerTimeout   time.Duration
	RetryAttempts    int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

// DefaultOptions returns production settings: 5 req/s, three retries
// backing off from one second up to ten.
func DefaultOptions() Options {
	return Options{
		BaseURL:          DefaultBaseURL,
		RateLimit:        5,
		Timeout:          15 * time.Second,
		BreakerThreshold: 5,
		BreakerTimeout:   60 * time.Second,
		RetryAttempts:    3,
		RetryBaseDelay:   time.Second,
		RetryMaxDelay:    10 * time.Second,
	}
}

// Client handles ESPN API requests
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	retries   int
	baseDelay time.Duration
	maxDelay  time.Duration
	log       *logrus.Entry
}

// NewClient creates an ESPN client. Zero-valued options take the defaults.
func NewClient(opts Options, log *logrus.Entry) *Client {
	def := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = def.RateLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = def.BreakerThreshold
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = def.BreakerTimeout
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = def.RetryBaseDelay
	}
	if opts.RetryMaxDelay < opts.RetryBaseDelay {
		opts.RetryMaxDelay = opts.RetryBaseDelay
	}

	threshold := uint32(opts.BreakerThreshold)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "espn",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// A 404 for an unknown event says nothing about provider health.
			var se *statusError
			return err == nil || (errors.As(err, &se) && se.code == http.StatusNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:   opts.BaseURL,
		http:      &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		breaker:   breaker,
		retries:   opts.RetryAttempts,
		baseDelay: opts.RetryBaseDelay,
		maxDelay:  opts.RetryMaxDelay,
		log:       log,
	}
}

// Available reports whether the breaker lets requests through.
func (c *Client) Available() bool {
	return c.breaker.State() != gobreaker.StateOpen
}

// FetchScoreboard fetches games for a specific date. A zero date asks for
// ESPN's notion of today.
func (c *Client) FetchScoreboard(ctx context.Context, date time.Time) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/%s/scoreboard", c.baseURL, BasketballNBA)
	if !date.IsZero() {
		url += "?dates=" + date.Format("20060102")
	}
	return c.fetch(ctx, url)
}

// FetchGameSummary fetches detailed game summary with box scores
func (c *Client) FetchGameSummary(ctx context.Context, eventID string) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/%s/summary?event=%s", c.baseURL, BasketballNBA, eventID)
	return c.fetch(ctx, url)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("espn returned %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// fetch performs a GET through the limiter and breaker, retrying transient
// failures with exponential backoff.
func (c *Client) fetch(ctx context.Context, url string) (map[string]interface{}, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.log.WithFields(logrus.Fields{
				"url":     url,
				"attempt": attempt,
				"delay":   delay.String(),
			}).WithError(lastErr).Debug("Retrying ESPN request")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.get(ctx, url)
		})
		if err == nil {
			return result.(map[string]interface{}), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("espn request failed after %d attempts: %w", c.retries+1, lastErr)
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseDelay << uint(attempt-1)
	if delay <= 0 || delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func (c *Client) get(ctx context.Context, url string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: snippet(body)}
	}

	// Blocked requests come back as an HTML page with a 200.
	if len(body) > 0 && body[0] == '<' {
		return nil, fmt.Errorf("espn returned HTML error page: %s", snippet(body))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w (body: %s)", err, snippet(body))
	}
	return result, nil
}

func snippet(b []byte) string {
	if len(b) > 200 {
		b = b[:200]
	}
	return string(b)
}
