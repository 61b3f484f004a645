// Package memstore keeps drafts in process memory. It backs tests and the memory storage driver.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/repository"
	"github.com/mcdev12/draftroom/go/internal/models"
)

type queueKey struct {
	draftID uuid.UUID
	team    string
}

// Store is a goroutine-safe in-memory draft store. It keeps no outbox, so events
// passed along with writes are ignored.
type Store struct {
	mu     sync.RWMutex
	drafts map[uuid.UUID]*models.Draft
	slots  map[uuid.UUID][]models.PickSlot
	picks  map[uuid.UUID][]models.Pick
	queues map[queueKey][]string
	pools  map[uuid.UUID][]models.PoolPlayer
}

func New() *Store {
	return &Store{
		drafts: make(map[uuid.UUID]*models.Draft),
		slots:  make(map[uuid.UUID][]models.PickSlot),
		picks:  make(map[uuid.UUID][]models.Pick),
		queues: make(map[queueKey][]string),
		pools:  make(map[uuid.UUID][]models.PoolPlayer),
	}
}

func (s *Store) CreateDraft(_ context.Context, d *models.Draft, slots []models.PickSlot, _ []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[d.ID]; ok {
		return fmt.Errorf("draft %s already exists", d.ID)
	}
	s.drafts[d.ID] = d.Clone()
	s.slots[d.ID] = append([]models.PickSlot(nil), slots...)
	return nil
}

func (s *Store) GetDraft(_ context.Context, id uuid.UUID) (*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", id, models.ErrNotFound)
	}
	return d.Clone(), nil
}

func (s *Store) GetActiveOrLatestDraftID(_ context.Context, leagueID string) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active, latest *models.Draft
	for _, d := range s.drafts {
		if d.LeagueID != leagueID {
			continue
		}
		if latest == nil || newer(d, latest) {
			latest = d
		}
		if d.Status == models.DraftStatusLive || d.Status == models.DraftStatusPaused {
			if active == nil || newer(d, active) {
				active = d
			}
		}
	}
	switch {
	case active != nil:
		return active.ID, nil
	case latest != nil:
		return latest.ID, nil
	}
	return uuid.Nil, fmt.Errorf("no draft for league %q: %w", leagueID, models.ErrNotFound)
}

func newer(a, b *models.Draft) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}

func (s *Store) UpdateDraftState(_ context.Context, d *models.Draft, _ []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkVersion(d); err != nil {
		return err
	}
	s.drafts[d.ID] = d.Clone()
	return nil
}

// checkVersion requires the stored draft to be exactly one version behind d. Callers hold mu.
func (s *Store) checkVersion(d *models.Draft) error {
	cur, ok := s.drafts[d.ID]
	if !ok {
		return fmt.Errorf("draft %s: %w", d.ID, models.ErrNotFound)
	}
	if cur.Version != d.Version-1 {
		return fmt.Errorf("draft %s is at version %d, write expects %d: %w", d.ID, cur.Version, d.Version-1, models.ErrStaleDraft)
	}
	return nil
}

func (s *Store) ListSlots(_ context.Context, draftID uuid.UUID, fromOverall, limit int) ([]models.PickSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.PickSlot{}
	for _, slot := range s.slots[draftID] {
		if slot.Overall < fromOverall {
			continue
		}
		out = append(out, slot)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListPicks(_ context.Context, draftID uuid.UUID) ([]models.Pick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Pick{}, s.picks[draftID]...), nil
}

func (s *Store) ListRecentPicks(_ context.Context, draftID uuid.UUID, limit int) ([]models.Pick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	picks := s.picks[draftID]
	out := []models.Pick{}
	for i := len(picks) - 1; i >= 0; i-- {
		out = append(out, picks[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ApplyPick(_ context.Context, req repository.ApplyPickRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(req.Draft); err != nil {
		return err
	}
	for _, p := range s.picks[req.Draft.ID] {
		if p.PlayerID == req.Pick.PlayerID {
			return fmt.Errorf("player %q already picked: %w", p.PlayerID, models.ErrPlayerUnavailable)
		}
		if p.Overall == req.Pick.Overall {
			return fmt.Errorf("overall %d already filled: %w", p.Overall, models.ErrStaleDraft)
		}
	}

	s.picks[req.Draft.ID] = append(s.picks[req.Draft.ID], req.Pick)
	s.drafts[req.Draft.ID] = req.Draft.Clone()

	key := queueKey{draftID: req.Draft.ID, team: req.Pick.Team}
	if q, ok := s.queues[key]; ok {
		kept := q[:0:0]
		for _, id := range q {
			if id != req.Pick.PlayerID {
				kept = append(kept, id)
			}
		}
		s.queues[key] = kept
	}
	return nil
}

func (s *Store) RevertPick(_ context.Context, req repository.RevertPickRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(req.Draft); err != nil {
		return err
	}
	picks := s.picks[req.Draft.ID]
	idx := -1
	for i, p := range picks {
		if p.Overall == req.Overall {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("pick %d: %w", req.Overall, models.ErrNotFound)
	}
	s.picks[req.Draft.ID] = append(picks[:idx:idx], picks[idx+1:]...)
	s.drafts[req.Draft.ID] = req.Draft.Clone()
	return nil
}

func (s *Store) FetchNextDeadline(_ context.Context) (*repository.NextDeadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.Draft
	for _, d := range s.drafts {
		if d.Status != models.DraftStatusLive || d.DeadlineTs == nil {
			continue
		}
		if best == nil || d.DeadlineTs.Before(*best.DeadlineTs) {
			best = d
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no live draft with a deadline: %w", models.ErrNotFound)
	}
	deadline := *best.DeadlineTs
	return &repository.NextDeadline{DraftID: best.ID, Deadline: &deadline}, nil
}

func (s *Store) FetchDraftsDueForPick(_ context.Context, now time.Time, limit int32) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*models.Draft
	for _, d := range s.drafts {
		if d.Status == models.DraftStatusLive && d.DeadlineTs != nil && !d.DeadlineTs.After(now) {
			due = append(due, d)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DeadlineTs.Before(*due[j].DeadlineTs) })
	ids := make([]uuid.UUID, 0, len(due))
	for _, d := range due {
		if limit > 0 && int32(len(ids)) == limit {
			break
		}
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (s *Store) SetTeamQueue(_ context.Context, req repository.SetQueueRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[queueKey{draftID: req.DraftID, team: req.Team}] = append([]string{}, req.PlayerIDs...)
	return nil
}

func (s *Store) GetTeamQueue(_ context.Context, draftID uuid.UUID, team string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.queues[queueKey{draftID: draftID, team: team}]...), nil
}

func (s *Store) ReplacePool(_ context.Context, draftID uuid.UUID, players []models.PoolPlayer, _ []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(players) == 0 {
		delete(s.pools, draftID)
		return nil
	}
	s.pools[draftID] = append([]models.PoolPlayer(nil), players...)
	return nil
}

func (s *Store) ListPool(_ context.Context, draftID uuid.UUID) ([]models.PoolPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PoolPlayer(nil), s.pools[draftID]...), nil
}

func (s *Store) CountPool(_ context.Context, draftID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools[draftID]), nil
}
