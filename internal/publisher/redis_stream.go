package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stream names
const (
	StreamBoxScoreFinalized = "boxscore.finalized"
	StreamMatchupProjection = "matchup.projection"
)

// DefaultMaxLen bounds each stream when no length is configured
const DefaultMaxLen = 10000

// BoxScoreFinalized is emitted once a game's box score has been stored
type BoxScoreFinalized struct {
	GameID    string    `json:"game_id"`
	GameDate  string    `json:"game_date"`
	PlayerIDs []int     `json:"player_ids"`
	At        time.Time `json:"at"`
}

// MatchupProjected is emitted after a matchup projection is computed
type MatchupProjected struct {
	LeagueKey   string    `json:"league_key"`
	Week        int       `json:"week"`
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	Mode        string    `json:"mode"`
	HomeWins    int       `json:"home_wins"`
	AwayWins    int       `json:"away_wins"`
	Ties        int       `json:"ties"`
	CurrentHome int       `json:"current_home_wins"`
	CurrentAway int       `json:"current_away_wins"`
	At          time.Time `json:"at"`
}

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client, maxLen int64) *RedisStreamPublisher {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &RedisStreamPublisher{client: client, maxLen: maxLen}
}

// PublishBoxScoreFinalized announces a newly stored box score
func (p *RedisStreamPublisher) PublishBoxScoreFinalized(ctx context.Context, event BoxScoreFinalized) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	return p.publish(ctx, StreamBoxScoreFinalized, event)
}

// PublishMatchupProjection announces a freshly computed matchup projection
func (p *RedisStreamPublisher) PublishMatchupProjection(ctx context.Context, event MatchupProjected) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	return p.publish(ctx, StreamMatchupProjection, event)
}

func (p *RedisStreamPublisher) publish(ctx context.Context, stream string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}
