// Package orchestrator makes clock expiry proactive: it sleeps until the earliest live
// deadline and autopicks every draft that is due.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft/repository"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DraftApp is what the scheduler needs from the draft engine.
type DraftApp interface {
	FetchNextDeadline(ctx context.Context) (*repository.NextDeadline, error)
	FetchDraftsDueForPick(ctx context.Context, limit int32) ([]uuid.UUID, error)
	CheckAndAutoPick(ctx context.Context, id uuid.UUID) (*models.Pick, error)
}

type Config struct {
	BatchSize int32         // how many due drafts to claim at once
	Workers   int           // autopick worker pool size
	MaxSleep  time.Duration // upper bound on any wait, so deadlines set by other processes are noticed
}

func DefaultConfig() Config {
	return Config{
		BatchSize: 50,
		Workers:   4,
		MaxSleep:  30 * time.Second,
	}
}

type Scheduler struct {
	app        DraftApp
	clock      clockwork.Clock
	cfg        Config
	wakeCh     chan struct{}
	instanceID string // short id for logging

	workCh chan uuid.UUID

	// Track in-flight work to prevent duplicate processing
	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex
	failures   int
	idleCh     chan struct{}
}

// NewScheduler creates a scheduler. A nil clock means the real clock.
func NewScheduler(app DraftApp, clock clockwork.Clock, cfg Config) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	def := DefaultConfig()
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxSleep <= 0 {
		cfg.MaxSleep = def.MaxSleep
	}
	return &Scheduler{
		app:        app,
		clock:      clock,
		cfg:        cfg,
		wakeCh:     make(chan struct{}, 1),
		instanceID: uuid.New().String()[:8],
		workCh:     make(chan uuid.UUID, cfg.Workers*2),
		inFlight:   make(map[uuid.UUID]bool),
		idleCh:     make(chan struct{}, 1),
	}
}

// Wake makes the scheduler re-read the next deadline. It never blocks.
func (s *Scheduler) Wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled, sleeping until the next deadline and dispatching due drafts.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Str("instance", s.instanceID).Int("workers", s.cfg.Workers).Msg("scheduler started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go s.worker(workerCtx, &wg, i)
	}
	defer func() {
		log.Info().Str("instance", s.instanceID).Msg("shutting down workers")
		cancelWorkers()
		wg.Wait()
		log.Info().Str("instance", s.instanceID).Msg("all workers shut down")
	}()

	retryCount := 0
	const maxRetries = 3

	for {
		// drain a pending wake; this iteration reads fresh state anyway
		select {
		case <-s.wakeCh:
		default:
		}

		wait, err := s.nextWait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			retryCount++
			if retryCount > maxRetries {
				log.Error().Err(err).Str("instance", s.instanceID).Msg("error fetching next deadline after retries")
				return err
			}
			log.Error().
				Err(err).
				Int("retry", retryCount).
				Str("instance", s.instanceID).
				Msg("error fetching next deadline, retrying")
			if !s.sleep(ctx, time.Second*time.Duration(retryCount)) {
				return nil
			}
			continue
		}
		retryCount = 0

		if wait > 0 {
			if !s.sleep(ctx, wait) {
				log.Info().Str("instance", s.instanceID).Msg("scheduler shutdown during wait")
				return nil
			}
			continue
		}

		if err := s.dispatchDue(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Str("instance", s.instanceID).Msg("error fetching due drafts")
			if !s.sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		// workers move the deadline; wait for them (or a wake) before reading it again
		if !s.waitIdle(ctx) {
			return nil
		}
	}
}

// nextWait is how long to sleep before the earliest deadline, capped at MaxSleep. Zero means something is due.
func (s *Scheduler) nextWait(ctx context.Context) (time.Duration, error) {
	nd, err := s.app.FetchNextDeadline(ctx)
	if errors.Is(err, models.ErrNotFound) {
		log.Debug().Str("instance", s.instanceID).Msg("no live drafts; idling")
		return s.cfg.MaxSleep, nil
	}
	if err != nil {
		return 0, err
	}
	if nd.Deadline == nil {
		return s.cfg.MaxSleep, nil
	}

	wait := nd.Deadline.Sub(s.clock.Now())
	if wait <= 0 {
		return 0, nil
	}
	if wait > s.cfg.MaxSleep {
		wait = s.cfg.MaxSleep
	}
	log.Debug().
		Str("draft_id", nd.DraftID.String()).
		Time("deadline", *nd.Deadline).
		Dur("wait", wait).
		Str("instance", s.instanceID).
		Msg("sleeping until next deadline")
	return wait, nil
}

// sleep waits d on the scheduler clock. It returns false on shutdown; a wake ends it early.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return true
	case <-s.wakeCh:
		log.Debug().Str("instance", s.instanceID).Msg("woken up early")
		return true
	case <-ctx.Done():
		return false
	}
}
