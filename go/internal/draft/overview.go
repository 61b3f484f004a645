package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Overview is the public snapshot of a draft rendered by clients.
type Overview struct {
	Draft              *models.Draft     `json:"draft"`
	TotalPicks         int               `json:"total_picks"`
	OnClock            *models.PickSlot  `json:"on_clock,omitempty"`
	RemainingSec       *int              `json:"remaining_sec"`
	PausedRemainingSec *int              `json:"paused_remaining_sec,omitempty"`
	RecentPicks        []models.Pick     `json:"recent_picks"`
	Upcoming           []models.PickSlot `json:"upcoming"`
	CustomPool         bool              `json:"custom_pool"`
	ServerTime         time.Time         `json:"server_time"`
}

// GetOverview settles an expired clock and returns the current snapshot.
func (a *App) GetOverview(ctx context.Context, id uuid.UUID) (*Overview, error) {
	if _, err := a.CheckAndAutoPick(ctx, id); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return nil, err
		case errors.Is(err, models.ErrPlayerUnavailable), errors.Is(err, models.ErrStaleDraft):
			log.Warn().Err(err).Str("draft_id", id.String()).Msg("autopick skipped while building overview")
		default:
			return nil, err
		}
	}

	d, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	recent, err := a.repo.ListRecentPicks(ctx, id, a.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent picks: %w", err)
	}
	upcoming := []models.PickSlot{}
	if d.Status != models.DraftStatusCompleted {
		upcoming, err = a.repo.ListSlots(ctx, id, d.CurOverall+1, a.upcomingLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to list upcoming slots: %w", err)
		}
	}
	custom, err := a.IsCustomPool(ctx, id)
	if err != nil {
		return nil, err
	}

	now := a.clock.Now()
	ov := &Overview{
		Draft:       d,
		TotalPicks:  d.TotalPicks(),
		RecentPicks: recent,
		Upcoming:    upcoming,
		CustomPool:  custom,
		ServerTime:  now,
	}
	if ov.RecentPicks == nil {
		ov.RecentPicks = []models.Pick{}
	}
	if d.Status != models.DraftStatusCompleted {
		if slot, ok := slotAt(d, d.CurOverall+1); ok {
			ov.OnClock = &slot
		}
	}
	ov.RemainingSec = remainingSeconds(d, now)
	if d.Status == models.DraftStatusPaused && d.PausedRemainingMs != nil {
		sec := int(*d.PausedRemainingMs / 1000)
		ov.PausedRemainingSec = &sec
	}
	return ov, nil
}

// GetCurrentOverview resolves the league's active-or-latest draft and returns its overview.
func (a *App) GetCurrentOverview(ctx context.Context, leagueID string) (*Overview, error) {
	id, err := a.ResolveDraftID(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return a.GetOverview(ctx, id)
}

// remainingSeconds is whole seconds until the deadline, floored at zero, or nil unless the draft is live.
func remainingSeconds(d *models.Draft, now time.Time) *int {
	if d.Status != models.DraftStatusLive || d.DeadlineTs == nil {
		return nil
	}
	left := d.DeadlineTs.Sub(now)
	sec := 0
	if left > 0 {
		sec = int(left / time.Second)
	}
	return &sec
}
