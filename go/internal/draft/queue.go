package draft

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/repository"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// SetTeamQueue overwrites a team's queue. Queued players are not checked for availability here.
func (a *App) SetTeamQueue(ctx context.Context, id uuid.UUID, team string, playerIDs []string) ([]string, error) {
	for i, pid := range playerIDs {
		if strings.TrimSpace(pid) == "" {
			return nil, fmt.Errorf("queue entry %d is empty: %w", i, models.ErrInvalidRequest)
		}
	}
	ids := append([]string{}, playerIDs...)

	var b batch
	defer a.flush(ctx, &b)

	return locked(a, id, func() ([]string, error) {
		d, err := a.repo.GetDraft(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get draft: %w", err)
		}
		if !d.HasTeam(team) {
			return nil, fmt.Errorf("team %q is not in this draft: %w", team, models.ErrInvalidRequest)
		}
		now := a.clock.Now()
		b.add(id, events.TypeQueueUpdated, now, events.QueueUpdatedPayload{
			Team:  team,
			Count: len(ids),
		})
		err = a.queues.SetTeamQueue(ctx, repository.SetQueueRequest{
			DraftID:   id,
			Team:      team,
			PlayerIDs: ids,
			UpdatedAt: now,
			Events:    b.events,
		})
		if err != nil {
			b.drop(0)
			return nil, fmt.Errorf("failed to save team queue: %w", err)
		}
		return ids, nil
	})
}

// GetTeamQueue returns a team's queue as last saved.
func (a *App) GetTeamQueue(ctx context.Context, id uuid.UUID, team string) ([]string, error) {
	d, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if !d.HasTeam(team) {
		return nil, fmt.Errorf("team %q is not in this draft: %w", team, models.ErrInvalidRequest)
	}
	ids, err := a.queues.GetTeamQueue(ctx, id, team)
	if err != nil {
		return nil, fmt.Errorf("failed to get team queue: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
