package draft

import (
	"context"

	"github.com/mcdev12/draftroom/go/internal/models"
)

// AutoPickStrategy chooses the player drafted for a team whose clock expired.
type AutoPickStrategy interface {
	// SelectPlayer returns models.ErrPlayerUnavailable when nobody can be picked.
	SelectPlayer(ctx context.Context, in AutoPickInput) (models.PoolPlayer, error)
}

// AutoPickInput is the draft state an AutoPickStrategy decides on.
type AutoPickInput struct {
	Draft *models.Draft
	Team  string
	Queue []string
	// Available is the unpicked pool in rank order.
	Available   []models.PoolPlayer
	IsAvailable func(playerID string) bool
	Lookup      func(playerID string) (models.PoolPlayer, bool)
}

// QueueThenRankStrategy takes the first selectable queued player, else the best ranked one.
type QueueThenRankStrategy struct{}

// SelectPlayer implements AutoPickStrategy.
func (QueueThenRankStrategy) SelectPlayer(_ context.Context, in AutoPickInput) (models.PoolPlayer, error) {
	for _, id := range in.Queue {
		if !in.IsAvailable(id) {
			continue
		}
		if p, ok := in.Lookup(id); ok {
			return p, nil
		}
		return models.PoolPlayer{PlayerID: id}, nil
	}
	if len(in.Available) > 0 {
		return in.Available[0], nil
	}
	return models.PoolPlayer{}, models.ErrPlayerUnavailable
}
