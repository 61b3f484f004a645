package sleeper_client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const directory = `{
  "4034": {"player_id": "4034", "full_name": "Christian McCaffrey", "position": "RB", "team": "SF", "search_rank": 1, "active": true, "fantasy_positions": ["RB"]},
  "SF":   {"first_name": "San Francisco", "last_name": "49ers", "position": "DEF", "team": "SF", "search_rank": 9999999, "active": true},
  "1234": {"player_id": "1234", "full_name": "Free Agent", "position": "WR", "team": null, "active": false}
}`

func TestFetchNFLPlayers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/players/nfl", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(directory))
	}))
	defer srv.Close()

	players, err := NewClient(srv.URL, time.Second).FetchNFLPlayers(context.Background())
	require.NoError(t, err)
	require.Len(t, players, 3)
	assert.Equal(t, "SF", players["SF"].PlayerID, "id falls back to the map key")
	assert.Equal(t, "San Francisco 49ers", players["SF"].Name())

	catalog := ToCatalog(players)
	require.Len(t, catalog, 3)
	assert.Equal(t, "1234", catalog[0].PlayerID)
	assert.Nil(t, catalog[0].NFLTeam)
	assert.False(t, catalog[0].Active)

	assert.Equal(t, "4034", catalog[1].PlayerID)
	require.NotNil(t, catalog[1].SearchRank)
	assert.Equal(t, 1, *catalog[1].SearchRank)
	assert.Equal(t, "SF", *catalog[1].NFLTeam)

	assert.Nil(t, catalog[2].SearchRank, "placeholder rank means unranked")
}

func TestFetchNFLPlayers_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).FetchNFLPlayers(context.Background())
	var statusErr *clients.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

type countingFetcher struct {
	calls   atomic.Int32
	fail    atomic.Bool
	release chan struct{}
}

func (f *countingFetcher) FetchNFLPlayers(context.Context) (map[string]Player, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.fail.Load() {
		return nil, errors.New("upstream down")
	}
	rank := 3
	return map[string]Player{"1": {PlayerID: "1", FullName: "One", Position: "QB", SearchRank: &rank, Active: true}}, nil
}

func TestCatalog_CachesUntilTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := &countingFetcher{}
	c := NewCatalog(f, time.Hour, clock)
	ctx := context.Background()

	players, err := c.ListPlayers(ctx)
	require.NoError(t, err)
	require.Len(t, players, 1)
	_, err = c.ListPlayers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())

	clock.Advance(time.Hour)
	_, err = c.ListPlayers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCatalog_ServesStaleOnFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := &countingFetcher{}
	c := NewCatalog(f, time.Minute, clock)
	ctx := context.Background()

	_, err := c.ListPlayers(ctx)
	require.NoError(t, err)

	f.fail.Store(true)
	clock.Advance(2 * time.Minute)
	players, err := c.ListPlayers(ctx)
	require.NoError(t, err)
	assert.Len(t, players, 1)

	empty := NewCatalog(f, time.Minute, clock)
	_, err = empty.ListPlayers(ctx)
	assert.Error(t, err, "no stale copy to fall back to")
}

func TestCatalog_CollapsesConcurrentRefreshes(t *testing.T) {
	f := &countingFetcher{release: make(chan struct{})}
	c := NewCatalog(f, time.Hour, clockwork.NewFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			players, err := c.ListPlayers(context.Background())
			assert.NoError(t, err)
			assert.Len(t, players, 1)
		}()
	}
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	// let the other callers reach the singleflight group before releasing the download
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	wg.Wait()
	assert.Equal(t, int32(1), f.calls.Load())
}
