package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// dispatchDue queues every due draft that is not already being handled.
func (s *Scheduler) dispatchDue(ctx context.Context) error {
	due, err := s.app.FetchDraftsDueForPick(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	log.Info().
		Int("count_due", len(due)).
		Int32("batch_size", s.cfg.BatchSize).
		Str("instance", s.instanceID).
		Msg("processing due drafts")

	for _, draftID := range due {
		if !s.claim(draftID) {
			log.Debug().Str("draft_id", draftID.String()).Str("instance", s.instanceID).Msg("skipping draft already in flight")
			continue
		}
		select {
		case <-ctx.Done():
			s.release(draftID, nil)
			return ctx.Err()
		case s.workCh <- draftID:
		}
	}
	return nil
}

func (s *Scheduler) claim(id uuid.UUID) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if s.inFlight[id] {
		return false
	}
	s.inFlight[id] = true
	return true
}

func (s *Scheduler) release(id uuid.UUID, err error) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, id)
	if err != nil {
		s.failures++
	}
	if len(s.inFlight) == 0 {
		select {
		case s.idleCh <- struct{}{}:
		default:
		}
	}
}

// waitIdle blocks until no draft is in flight. A round with failed autopicks backs off for a second
// so a persistent error does not spin the loop.
func (s *Scheduler) waitIdle(ctx context.Context) bool {
	for {
		s.inFlightMu.Lock()
		if len(s.inFlight) == 0 {
			failed := s.failures > 0
			s.failures = 0
			s.inFlightMu.Unlock()
			if failed {
				return s.sleep(ctx, time.Second)
			}
			return true
		}
		s.inFlightMu.Unlock()

		select {
		case <-s.idleCh:
		case <-ctx.Done():
			return false
		}
	}
}

// worker processes draft timeouts from the work channel
func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case draftID := <-s.workCh:
			err := s.handleTimeout(ctx, draftID)
			if err != nil {
				log.Error().
					Err(err).
					Str("draft_id", draftID.String()).
					Str("instance", s.instanceID).
					Int("worker_id", workerID).
					Msg("worker timeout handling failed")
			}
			s.release(draftID, err)
		}
	}
}

// handleTimeout autopicks for a due draft. Outcomes the engine already resolved are not errors.
func (s *Scheduler) handleTimeout(ctx context.Context, draftID uuid.UUID) error {
	pick, err := s.app.CheckAndAutoPick(ctx, draftID)
	switch {
	case errors.Is(err, models.ErrPlayerUnavailable):
		log.Warn().Err(err).Str("draft_id", draftID.String()).Msg("autopick found no player; draft paused")
		return nil
	case errors.Is(err, models.ErrStaleDraft), errors.Is(err, models.ErrNotFound):
		log.Debug().Err(err).Str("draft_id", draftID.String()).Msg("draft changed before autopick")
		return nil
	case err != nil:
		return fmt.Errorf("autopick failed: %w", err)
	}
	if pick != nil {
		log.Info().
			Str("draft_id", draftID.String()).
			Int("overall", pick.Overall).
			Str("team", pick.Team).
			Str("player_id", pick.PlayerID).
			Msg("auto-picked on timeout")
	}
	return nil
}
