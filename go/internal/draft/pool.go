package draft

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// availability is the selectable pool of one draft at one point in time.
type availability struct {
	picked map[string]bool
	custom bool
	// restricted means a player must also be present in byID to be selectable.
	restricted bool
	players    []models.PoolPlayer
	byID       map[string]models.PoolPlayer
}

func (a *App) loadAvailability(ctx context.Context, d *models.Draft) (*availability, error) {
	picks, err := a.repo.ListPicks(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	return a.loadAvailabilityFrom(ctx, d, picks)
}

func (a *App) loadAvailabilityFrom(ctx context.Context, d *models.Draft, picks []models.Pick) (*availability, error) {
	av := &availability{
		picked: make(map[string]bool, len(picks)),
		byID:   make(map[string]models.PoolPlayer),
	}
	for _, p := range picks {
		av.picked[p.PlayerID] = true
	}

	custom, err := a.pool.ListPool(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list custom pool: %w", err)
	}
	switch {
	case len(custom) > 0:
		av.custom = true
		av.restricted = true
		av.players = custom
	case a.catalog != nil:
		catalog, err := a.catalog.ListPlayers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load player catalog: %w", err)
		}
		av.restricted = true
		for _, c := range catalog {
			if !c.Active {
				continue
			}
			if len(a.positions) > 0 && !a.positions[strings.ToUpper(c.Position)] {
				continue
			}
			av.players = append(av.players, c.AsPoolPlayer())
		}
	}
	for _, p := range av.players {
		av.byID[p.PlayerID] = p
	}
	return av, nil
}

func (av *availability) isAvailable(playerID string) bool {
	if av.picked[playerID] {
		return false
	}
	if av.restricted {
		_, ok := av.byID[playerID]
		return ok
	}
	return true
}

func (av *availability) lookup(playerID string) (models.PoolPlayer, bool) {
	p, ok := av.byID[playerID]
	return p, ok
}

// nameFor prefers an explicit display name and falls back to the pool entry.
func (av *availability) nameFor(playerID string, explicit *string) *string {
	if explicit != nil && *explicit != "" {
		return explicit
	}
	if p, ok := av.byID[playerID]; ok && p.Name != "" {
		name := p.Name
		return &name
	}
	return nil
}

// sorted returns unpicked players by rank ascending (unranked last), then name, then id.
func (av *availability) sorted() []models.PoolPlayer {
	out := make([]models.PoolPlayer, 0, len(av.players))
	for _, p := range av.players {
		if !av.picked[p.PlayerID] {
			out = append(out, p)
		}
	}
	sortPool(out)
	return out
}

func sortPool(players []models.PoolPlayer) {
	sort.SliceStable(players, func(i, j int) bool {
		a, b := players[i], players[j]
		switch {
		case a.Rank != nil && b.Rank != nil && *a.Rank != *b.Rank:
			return *a.Rank < *b.Rank
		case a.Rank != nil && b.Rank == nil:
			return true
		case a.Rank == nil && b.Rank != nil:
			return false
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.PlayerID < b.PlayerID
	})
}

// ListAvailablePlayers returns the selectable pool in autopick order, optionally filtered by position.
func (a *App) ListAvailablePlayers(ctx context.Context, id uuid.UUID, position string, limit int) ([]models.PoolPlayer, error) {
	d, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	av, err := a.loadAvailability(ctx, d)
	if err != nil {
		return nil, err
	}

	position = strings.ToUpper(strings.TrimSpace(position))
	out := make([]models.PoolPlayer, 0)
	for _, p := range av.sorted() {
		if position != "" && strings.ToUpper(p.Position) != position {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// SetPool replaces the uploaded pool. Any row switches the draft to custom mode.
func (a *App) SetPool(ctx context.Context, id uuid.UUID, players []models.PoolPlayer) (int, error) {
	seen := make(map[string]bool, len(players))
	for i, p := range players {
		if strings.TrimSpace(p.PlayerID) == "" {
			return 0, fmt.Errorf("player %d has no player_id: %w", i, models.ErrInvalidRequest)
		}
		if seen[p.PlayerID] {
			return 0, fmt.Errorf("duplicate player_id %q: %w", p.PlayerID, models.ErrInvalidRequest)
		}
		seen[p.PlayerID] = true
	}

	var b batch
	defer a.flush(ctx, &b)

	return locked(a, id, func() (int, error) {
		if _, err := a.repo.GetDraft(ctx, id); err != nil {
			return 0, fmt.Errorf("failed to get draft: %w", err)
		}
		b.add(id, events.TypePoolUpdated, a.clock.Now(), events.PoolUpdatedPayload{
			Count:  len(players),
			Custom: len(players) > 0,
		})
		if err := a.pool.ReplacePool(ctx, id, players, b.events); err != nil {
			b.drop(0)
			return 0, fmt.Errorf("failed to replace pool: %w", err)
		}
		return len(players), nil
	})
}

// ClearPool removes the uploaded pool so the catalog fallback applies again.
func (a *App) ClearPool(ctx context.Context, id uuid.UUID) error {
	_, err := a.SetPool(ctx, id, nil)
	return err
}

// IsCustomPool reports whether the draft has an uploaded pool.
func (a *App) IsCustomPool(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := a.pool.CountPool(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to count pool: %w", err)
	}
	return n > 0, nil
}
