package google

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/juno/internal/reconciliation"
)

const (
	cacheKey = "google:live_games:nba"

	// DefaultCacheTTL keeps scraped results around for a single poll cycle.
	DefaultCacheTTL = 30 * time.Second
)

// PageFetcher returns the rendered results page for today's games
type PageFetcher interface {
	FetchLiveGames(ctx context.Context) (string, error)
}

// Cache stores scraped results between polls
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Ingester scrapes Google Sports as a secondary game status source
type Ingester struct {
	fetcher PageFetcher
	cache   Cache
	ttl     time.Duration
	log     *logrus.Entry
}

// NewIngester creates a new Google Sports ingester. cache may be nil.
func NewIngester(fetcher PageFetcher, cache Cache, ttl time.Duration, log *logrus.Entry) *Ingester {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Ingester{fetcher: fetcher, cache: cache, ttl: ttl, log: log}
}

// LiveGames returns today's games as scraped from Google, served from the
// cache while it is fresh.
func (i *Ingester) LiveGames(ctx context.Context) ([]LiveGame, error) {
	if games, ok := i.cached(ctx); ok {
		i.log.WithField("games", len(games)).Debug("Using cached live games")
		return games, nil
	}

	htmlContent, err := i.fetcher.FetchLiveGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch live games: %w", err)
	}

	doc, err := ParseHTML(htmlContent)
	if err != nil {
		return nil, err
	}
	games := ParseLiveGames(doc)
	i.log.WithField("games", len(games)).Info("Parsed live games from Google")

	if i.cache != nil {
		if data, err := json.Marshal(games); err == nil {
			if err := i.cache.Set(ctx, cacheKey, data, i.ttl); err != nil {
				i.log.WithError(err).Warn("Failed to cache live games")
			}
		}
	}
	return games, nil
}

// Observations returns today's games in the form the reconciliation engine
// consumes.
func (i *Ingester) Observations(ctx context.Context) ([]reconciliation.ObservedGame, error) {
	games, err := i.LiveGames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]reconciliation.ObservedGame, 0, len(games))
	for _, g := range games {
		out = append(out, g.Observed())
	}
	return out, nil
}

func (i *Ingester) cached(ctx context.Context) ([]LiveGame, bool) {
	if i.cache == nil {
		return nil, false
	}
	raw, err := i.cache.Get(ctx, cacheKey)
	if err != nil || raw == "" {
		return nil, false
	}
	var games []LiveGame
	if err := json.Unmarshal([]byte(raw), &games); err != nil {
		return nil, false
	}
	return games, true
}
