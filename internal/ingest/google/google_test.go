package google

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/juno/internal/cache"
	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/logger"
)

const cardsHTML = `<html><body>
<div class="imso_mh__lv-m-stl-cont">
  <div class="imso_mh__first-tn-ed">Clippers</div>
  <div class="imso_mh__first-tn-ed">Warriors</div>
  <div class="imso_mh__l-tm-sc">98</div>
  <div class="imso_mh__r-tm-sc">105</div>
  <span class="imso_mh__ft-mtch">Q4 2:30</span>
</div>
<div class="imso_mh__lv-m-stl-cont">
  <div class="imso_mh__first-tn-ed">Trail Blazers</div>
  <div class="imso_mh__first-tn-ed">Jazz</div>
  <span class="imso_mh__ft-mtch">Postponed</span>
</div>
<div class="imso_mh__lv-m-stl-cont">
  <div class="imso_mh__first-tn-ed">Celtics</div>
</div>
</body></html>`

const textHTML = `<html><body>
<div class="sports-result">NBA Lakers 105 - 98 Celtics Final</div>
<div class="sports-ad">Buy tickets</div>
</body></html>`

func TestParseLiveGamesCards(t *testing.T) {
	doc, err := ParseHTML(cardsHTML)
	require.NoError(t, err)

	games := ParseLiveGames(doc)
	require.Len(t, games, 2)

	live := games[0]
	assert.Equal(t, "Clippers", live.AwayTeam)
	assert.Equal(t, "Warriors", live.HomeTeam)
	assert.Equal(t, 98, live.AwayScore)
	assert.Equal(t, 105, live.HomeScore)
	assert.Equal(t, 4, live.Period)
	assert.Equal(t, "2:30", live.TimeRemaining)
	assert.Equal(t, fantasy.GameInProgress, live.Status())

	assert.Equal(t, fantasy.GamePostponed, games[1].Status())
}

func TestParseLiveGamesTextFallback(t *testing.T) {
	doc, err := ParseHTML(textHTML)
	require.NoError(t, err)

	games := ParseLiveGames(doc)
	require.Len(t, games, 1)
	assert.Equal(t, "Lakers", games[0].AwayTeam)
	assert.Equal(t, "Celtics", games[0].HomeTeam)
	assert.Equal(t, 105, games[0].AwayScore)
	assert.Equal(t, 98, games[0].HomeScore)
}

func TestParseGameClock(t *testing.T) {
	p, clock := parseGameClock("3rd 5:45")
	assert.Equal(t, 3, p)
	assert.Equal(t, "5:45", clock)

	p, clock = parseGameClock("Halftime")
	assert.Equal(t, 2, p)
	assert.Equal(t, "Halftime", clock)

	p, _ = parseGameClock("Final/OT")
	assert.Zero(t, p)
}

func TestLiveGameStatus(t *testing.T) {
	assert.Equal(t, fantasy.GameFinal, LiveGame{StatusText: "Final/OT"}.Status())
	assert.Equal(t, fantasy.GameCancelled, LiveGame{StatusText: "Cancelled"}.Status())
	assert.Equal(t, fantasy.GameInProgress, LiveGame{StatusText: "Halftime"}.Status())
	assert.Equal(t, fantasy.GameScheduled, LiveGame{StatusText: "7:30 PM"}.Status())

	obs := LiveGame{AwayTeam: "Clippers", HomeTeam: "Warriors", HomeScore: 3, StatusText: "Final"}.Observed()
	assert.Equal(t, "Warriors", obs.HomeTeam)
	assert.Equal(t, fantasy.GameFinal, obs.Status)
	assert.Equal(t, 3, obs.HomeScore)
}

type stubFetcher struct {
	html  string
	err   error
	calls int
}

func (s *stubFetcher) FetchLiveGames(context.Context) (string, error) {
	s.calls++
	return s.html, s.err
}

func TestIngesterCachesScrapes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	fetcher := &stubFetcher{html: cardsHTML}
	ing := NewIngester(fetcher, cache.NewFromClient(client), time.Minute, logger.Discard())
	ctx := context.Background()

	obs, err := ing.Observations(ctx)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, fantasy.GamePostponed, obs[1].Status)

	_, err = ing.LiveGames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)

	mr.FastForward(2 * time.Minute)
	_, err = ing.LiveGames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestIngesterFetchError(t *testing.T) {
	ing := NewIngester(&stubFetcher{err: errors.New("blocked")}, nil, 0, logger.Discard())
	_, err := ing.Observations(context.Background())
	assert.ErrorContains(t, err, "blocked")
}
