package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/juno/internal/fantasy"
)

// DefaultSnapshotTTL applies when the configured TTL is not positive
const DefaultSnapshotTTL = 15 * time.Minute

// SnapshotCache memoizes aggregated player snapshots in Redis. Entries for
// a player are dropped whenever a new box score for that player lands.
type SnapshotCache struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewSnapshotCache creates a snapshot memo on top of a Redis cache
func NewSnapshotCache(rc *RedisCache, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotCache{cache: rc, ttl: ttl}
}

// SnapshotKey is snapshot:{player}:{window}:{reduction}:{asof}
func SnapshotKey(player fantasy.PlayerID, window fantasy.Window, reduction fantasy.Reduction, asOf time.Time) string {
	return fmt.Sprintf("snapshot:%d:%s:%s:%s", player, window, reduction, fantasy.DateKey(asOf))
}

// cachedSnapshot stores the has-data flag alongside the snapshot so that
// players without qualifying games are memoized too
type cachedSnapshot struct {
	Snapshot fantasy.Snapshot `json:"snapshot"`
	HasData  bool             `json:"has_data"`
}

// Get returns a memoized snapshot. found is false on a miss.
func (c *SnapshotCache) Get(ctx context.Context, player fantasy.PlayerID, window fantasy.Window, reduction fantasy.Reduction, asOf time.Time) (snap fantasy.Snapshot, hasData, found bool, err error) {
	raw, err := c.cache.Get(ctx, SnapshotKey(player, window, reduction, asOf))
	if errors.Is(err, ErrMiss) {
		return fantasy.Snapshot{}, false, false, nil
	}
	if err != nil {
		return fantasy.Snapshot{}, false, false, fmt.Errorf("reading snapshot: %w", err)
	}

	var cs cachedSnapshot
	if err := json.Unmarshal([]byte(raw), &cs); err != nil {
		return fantasy.Snapshot{}, false, false, fmt.Errorf("decoding snapshot: %w", err)
	}
	return cs.Snapshot, cs.HasData, true, nil
}

// Put memoizes a snapshot under its own identifying fields. The requested
// reduction is passed separately because single-game snapshots report the
// literal reduction.
func (c *SnapshotCache) Put(ctx context.Context, reduction fantasy.Reduction, snap fantasy.Snapshot, hasData bool) error {
	data, err := json.Marshal(cachedSnapshot{Snapshot: snap, HasData: hasData})
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	key := SnapshotKey(snap.PlayerID, snap.Window, reduction, snap.AsOf)
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// InvalidatePlayer drops every memoized snapshot for a player
func (c *SnapshotCache) InvalidatePlayer(ctx context.Context, player fantasy.PlayerID) (int, error) {
	n, err := c.cache.DeletePattern(ctx, fmt.Sprintf("snapshot:%d:*", player))
	if err != nil {
		return n, fmt.Errorf("invalidating snapshots for player %d: %w", player, err)
	}
	return n, nil
}
