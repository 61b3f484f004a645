package sleeper_client

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads the raw player directory.
type Fetcher interface {
	FetchNFLPlayers(ctx context.Context) (map[string]Player, error)
}

// Catalog caches the Sleeper directory as a draft player catalog. Concurrent refreshes share one download.
type Catalog struct {
	fetcher Fetcher
	ttl     time.Duration
	clock   clockwork.Clock
	group   singleflight.Group

	mu        sync.RWMutex
	players   []models.CatalogPlayer
	fetchedAt time.Time
}

func NewCatalog(fetcher Fetcher, ttl time.Duration, clock clockwork.Clock) *Catalog {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Catalog{fetcher: fetcher, ttl: ttl, clock: clock}
}

// ListPlayers returns the cached directory, refreshing it once the TTL has passed.
// A failed refresh serves the stale copy when there is one.
func (c *Catalog) ListPlayers(ctx context.Context) ([]models.CatalogPlayer, error) {
	c.mu.RLock()
	players, fetchedAt := c.players, c.fetchedAt
	c.mu.RUnlock()
	if players != nil && c.clock.Since(fetchedAt) < c.ttl {
		return players, nil
	}

	v, err, shared := c.group.Do("nfl", func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		if players != nil {
			log.Warn().Err(err).Time("fetched_at", fetchedAt).Msg("sleeper refresh failed; serving stale catalog")
			return players, nil
		}
		return nil, err
	}
	if shared {
		log.Debug().Msg("sleeper catalog refresh shared with a concurrent caller")
	}
	return v.([]models.CatalogPlayer), nil
}

func (c *Catalog) refresh(ctx context.Context) ([]models.CatalogPlayer, error) {
	start := c.clock.Now()
	raw, err := c.fetcher.FetchNFLPlayers(ctx)
	if err != nil {
		return nil, err
	}
	players := ToCatalog(raw)

	c.mu.Lock()
	c.players = players
	c.fetchedAt = c.clock.Now()
	c.mu.Unlock()

	log.Info().
		Int("players", len(players)).
		Dur("took", c.clock.Since(start)).
		Msg("sleeper catalog refreshed")
	return players, nil
}
