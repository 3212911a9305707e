package publisher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T, maxLen int64) (*RedisStreamPublisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStreamPublisher(client, maxLen), client
}

func TestPublishBoxScoreFinalized(t *testing.T) {
	pub, client := newTestPublisher(t, 0)
	ctx := context.Background()

	err := pub.PublishBoxScoreFinalized(ctx, BoxScoreFinalized{GameID: "401", GameDate: "2025-11-04", PlayerIDs: []int{3, 9}})
	require.NoError(t, err)

	msgs, err := client.XRange(ctx, StreamBoxScoreFinalized, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got BoxScoreFinalized
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got))
	assert.Equal(t, "401", got.GameID)
	assert.Equal(t, []int{3, 9}, got.PlayerIDs)
	assert.False(t, got.At.IsZero())
}

func TestPublishMatchupProjection(t *testing.T) {
	pub, client := newTestPublisher(t, 100)
	ctx := context.Background()

	for week := 1; week <= 3; week++ {
		require.NoError(t, pub.PublishMatchupProjection(ctx, MatchupProjected{LeagueKey: "nba.l.1", Week: week, HomeWins: 5, AwayWins: 4}))
	}

	n, err := client.XLen(ctx, StreamMatchupProjection).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
