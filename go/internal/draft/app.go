package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/repository"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DraftRepository defines what the app layer needs from the draft store.
// State writes carry the draft's next version and fail with models.ErrStaleDraft
// when another writer got there first. The events passed along are stored with
// the write by stores that keep an outbox.
type DraftRepository interface {
	CreateDraft(ctx context.Context, d *models.Draft, slots []models.PickSlot, evs []events.Event) error
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	GetActiveOrLatestDraftID(ctx context.Context, leagueID string) (uuid.UUID, error)
	UpdateDraftState(ctx context.Context, d *models.Draft, evs []events.Event) error
	ListSlots(ctx context.Context, draftID uuid.UUID, fromOverall, limit int) ([]models.PickSlot, error)
	ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error)
	ListRecentPicks(ctx context.Context, draftID uuid.UUID, limit int) ([]models.Pick, error)
	ApplyPick(ctx context.Context, req repository.ApplyPickRequest) error
	RevertPick(ctx context.Context, req repository.RevertPickRequest) error
	FetchNextDeadline(ctx context.Context) (*repository.NextDeadline, error)
	FetchDraftsDueForPick(ctx context.Context, now time.Time, limit int32) ([]uuid.UUID, error)
}

// QueueRepository defines what the app layer needs for team queues
type QueueRepository interface {
	SetTeamQueue(ctx context.Context, req repository.SetQueueRequest) error
	GetTeamQueue(ctx context.Context, draftID uuid.UUID, team string) ([]string, error)
}

// PoolRepository defines what the app layer needs for uploaded player pools
type PoolRepository interface {
	ReplacePool(ctx context.Context, draftID uuid.UUID, players []models.PoolPlayer, evs []events.Event) error
	ListPool(ctx context.Context, draftID uuid.UUID) ([]models.PoolPlayer, error)
	CountPool(ctx context.Context, draftID uuid.UUID) (int, error)
}

// PlayerCatalog supplies the upstream player list used when no custom pool is uploaded.
type PlayerCatalog interface {
	ListPlayers(ctx context.Context) ([]models.CatalogPlayer, error)
}

// Clock is the time source used for deadlines.
type Clock interface {
	Now() time.Time
}

const (
	defaultRecentPicks   = 10
	defaultUpcomingSlots = 12
)

// App handles draft business logic
type App struct {
	repo    DraftRepository
	queues  QueueRepository
	pool    PoolRepository
	catalog PlayerCatalog

	clock      Clock
	sink       events.Sink
	strat      AutoPickStrategy
	onDeadline func()
	locks      *keyedMutex

	positions     map[string]bool
	recentLimit   int
	upcomingLimit int
}

// Option configures an App.
type Option func(*App)

// WithClock overrides the real clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithSink sets where events are delivered.
func WithSink(s events.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithDeadlineHook registers fn to be called whenever a draft deadline changes.
func WithDeadlineHook(fn func()) Option {
	return func(a *App) { a.onDeadline = fn }
}

// WithStrategy replaces the default autopick strategy.
func WithStrategy(s AutoPickStrategy) Option {
	return func(a *App) { a.strat = s }
}

// WithDraftablePositions restricts the catalog fallback pool to the given positions.
func WithDraftablePositions(positions []string) Option {
	return func(a *App) {
		a.positions = make(map[string]bool, len(positions))
		for _, p := range positions {
			a.positions[strings.ToUpper(strings.TrimSpace(p))] = true
		}
	}
}

// WithOverviewLimits sets how many recent picks and upcoming slots an overview carries.
func WithOverviewLimits(recent, upcoming int) Option {
	return func(a *App) {
		if recent > 0 {
			a.recentLimit = recent
		}
		if upcoming > 0 {
			a.upcomingLimit = upcoming
		}
	}
}

// NewApp creates a new draft App. catalog may be nil, in which case only uploaded pools restrict picks.
func NewApp(repo DraftRepository, queues QueueRepository, pool PoolRepository, catalog PlayerCatalog, opts ...Option) *App {
	a := &App{
		repo:          repo,
		queues:        queues,
		pool:          pool,
		catalog:       catalog,
		clock:         clockwork.NewRealClock(),
		sink:          events.Discard,
		strat:         QueueThenRankStrategy{},
		locks:         newKeyedMutex(),
		recentLimit:   defaultRecentPicks,
		upcomingLimit: defaultUpcomingSlots,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateDraftRequest holds the settings for a new draft.
type CreateDraftRequest struct {
	LeagueID     string   `json:"league_id"`
	Year         int      `json:"year"`
	Rounds       int      `json:"rounds"`
	Teams        []string `json:"teams"`
	ClockSeconds int      `json:"clock_seconds"`
	Snake        bool     `json:"snake"`
}

// MakePickRequest is a pick submitted by the team on the clock.
type MakePickRequest struct {
	DraftID    uuid.UUID
	Team       string
	PlayerID   string
	PlayerName *string
	MadeBy     string
}

// ForcePickRequest is an admin pick for the current slot. Team defaults to the slot owner.
type ForcePickRequest struct {
	DraftID    uuid.UUID
	PlayerID   string
	PlayerName *string
	Team       *string
	MadeBy     string
}

// CreateDraft validates settings, materializes the pick order and persists both.
func (a *App) CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.Draft, error) {
	if err := validateCreateDraftRequest(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	now := a.clock.Now()
	leagueID := strings.TrimSpace(req.LeagueID)
	if leagueID == "" {
		leagueID = "default"
	}
	d := &models.Draft{
		ID:           uuid.New(),
		LeagueID:     leagueID,
		Year:         req.Year,
		Rounds:       req.Rounds,
		Teams:        append([]string(nil), req.Teams...),
		ClockSeconds: req.ClockSeconds,
		Snake:        req.Snake,
		Status:       models.DraftStatusNotStarted,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
	slots := generateSlots(d.ID, d.Teams, d.Rounds, d.Snake)

	var b batch
	b.add(d.ID, events.TypeDraftCreated, now, events.DraftCreatedPayload{
		DraftID:      d.ID.String(),
		LeagueID:     d.LeagueID,
		Year:         d.Year,
		Rounds:       d.Rounds,
		Teams:        d.Teams,
		ClockSeconds: d.ClockSeconds,
		Snake:        d.Snake,
	})
	if err := a.repo.CreateDraft(ctx, d, slots, b.events); err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}
	a.flush(ctx, &b)

	log.Info().
		Str("draft_id", d.ID.String()).
		Str("league_id", d.LeagueID).
		Int("rounds", d.Rounds).
		Int("teams", len(d.Teams)).
		Bool("snake", d.Snake).
		Msg("created draft")
	return d, nil
}

// GetDraft retrieves a draft by ID without triggering autopick.
func (a *App) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	d, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return d, nil
}

// ResolveDraftID returns the live or paused draft of a league, else its newest draft.
func (a *App) ResolveDraftID(ctx context.Context, leagueID string) (uuid.UUID, error) {
	id, err := a.repo.GetActiveOrLatestDraftID(ctx, leagueID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve draft for league %q: %w", leagueID, err)
	}
	return id, nil
}

// StartDraft moves a draft to LIVE and puts the first slot on the clock.
func (a *App) StartDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	var b batch
	defer a.flush(ctx, &b)

	return locked(a, id, func() (*models.Draft, error) {
		d, err := a.repo.GetDraft(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get draft: %w", err)
		}
		if err := validateStatusTransition(d.Status, models.DraftStatusLive, "start"); err != nil {
			return nil, err
		}
		if d.Status != models.DraftStatusNotStarted {
			return nil, fmt.Errorf("draft is %s: %w", d.Status, models.ErrInvalidState)
		}

		now := a.clock.Now()
		next := d.Next(now)
		next.Status = models.DraftStatusLive
		next.StartedAt = &now
		startClock(next, now, next.Clock())

		m := b.mark()
		b.add(id, events.TypeDraftStarted, now, events.DraftStartedPayload{
			DraftID:     id.String(),
			StartedAt:   now,
			TotalRounds: next.Rounds,
			TotalPicks:  next.TotalPicks(),
		})
		b.pickStarted(next)
		if err := a.repo.UpdateDraftState(ctx, next, b.since(m)); err != nil {
			b.drop(m)
			return nil, fmt.Errorf("failed to start draft: %w", err)
		}
		log.Info().Str("draft_id", id.String()).Msg("draft started")
		return next, nil
	})
}

// PauseDraft freezes the clock, keeping the remaining time for resume.
func (a *App) PauseDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	var b batch
	defer a.flush(ctx, &b)

	return locked(a, id, func() (*models.Draft, error) {
		d, err := a.repo.GetDraft(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get draft: %w", err)
		}
		if err := validateStatusTransition(d.Status, models.DraftStatusPaused, "pause"); err != nil {
			return nil, err
		}
		return a.pauseLocked(ctx, d, "manual pause", &b)
	})
}

func (a *App) pauseLocked(ctx context.Context, d *models.Draft, reason string, b *batch) (*models.Draft, error) {
	now := a.clock.Now()
	remaining := d.Clock()
	if d.DeadlineTs != nil {
		remaining = d.DeadlineTs.Sub(now)
	}
	if remaining < 0 {
		remaining = 0
	}
	ms := remaining.Milliseconds()

	next := d.Next(now)
	next.Status = models.DraftStatusPaused
	next.PausedRemainingMs = &ms
	next.DeadlineTs = nil
	next.ClockStartedAt = nil

	m := b.mark()
	b.add(d.ID, events.TypeDraftPaused, now, events.DraftPausedPayload{
		DraftID:     d.ID.String(),
		PausedAt:    now,
		RemainingMs: ms,
		Reason:      reason,
	})
	if err := a.repo.UpdateDraftState(ctx, next, b.since(m)); err != nil {
		b.drop(m)
		return nil, fmt.Errorf("failed to pause draft: %w", err)
	}
	b.wake = true
	log.Info().Str("draft_id", d.ID.String()).Int64("remaining_ms", ms).Str("reason", reason).Msg("draft paused")
	return next, nil
}

// ResumeDraft restarts the clock with the time that was left at pause.
func (a *App) ResumeDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	var b batch
	defer a.flush(ctx, &b)

	return locked(a, id, func() (*models.Draft, error) {
		d, err := a.repo.GetDraft(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get draft: %w", err)
		}
		if err := validateStatusTransition(d.Status, models.DraftStatusLive, "resume"); err != nil {
			return nil, err
		}
		if d.Status != models.DraftStatusPaused {
			return nil, fmt.Errorf("draft is %s: %w", d.Status, models.ErrInvalidState)
		}

		now := a.clock.Now()
		remaining := d.Clock()
		if d.PausedRemainingMs != nil {
			remaining = time.Duration(*d.PausedRemainingMs) * time.Millisecond
		}

		next := d.Next(now)
		next.Status = models.DraftStatusLive
		startClock(next, now, remaining)

		m := b.mark()
		b.add(id, events.TypeDraftResumed, now, events.DraftResumedPayload{
			DraftID:   id.String(),
			ResumedAt: now,
			TimeoutAt: *next.DeadlineTs,
		})
		if err := a.repo.UpdateDraftState(ctx, next, b.since(m)); err != nil {
			b.drop(m)
			return nil, fmt.Errorf("failed to resume draft: %w", err)
		}
		b.wake = true
		log.Info().Str("draft_id", id.String()).Dur("remaining", remaining).Msg("draft resumed")
		return next, nil
	})
}

// SetClockSeconds changes the per-pick duration. With applyToCurrent the running (or frozen) clock is reset to it.
func (a *App) SetClockSeconds(ctx context.Context, id uuid.UUID, seconds int, applyToCurrent bool) (*models.Draft, error) {
	if seconds < 1 {
		return nil, fmt.Errorf("clock_seconds must be at least 1: %w", models.ErrInvalidRequest)
	}

	var b batch
	defer a.flush(ctx, &b)

	return locked(a, id, func() (*models.Draft, error) {
		d, err := a.repo.GetDraft(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get draft: %w", err)
		}
		if d.Status == models.DraftStatusCompleted {
			return nil, fmt.Errorf("cannot change clock of a completed draft: %w", models.ErrInvalidState)
		}

		now := a.clock.Now()
		next := d.Next(now)
		next.ClockSeconds = seconds
		if applyToCurrent {
			switch next.Status {
			case models.DraftStatusLive:
				startClock(next, now, next.Clock())
			case models.DraftStatusPaused:
				ms := next.Clock().Milliseconds()
				next.PausedRemainingMs = &ms
			}
		}

		m := b.mark()
		b.add(id, events.TypeClockChanged, now, events.ClockChangedPayload{
			ClockSeconds:     seconds,
			AppliedToCurrent: applyToCurrent,
			TimeoutAt:        next.DeadlineTs,
		})
		if err := a.repo.UpdateDraftState(ctx, next, b.since(m)); err != nil {
			b.drop(m)
			return nil, fmt.Errorf("failed to update clock: %w", err)
		}
		b.wake = true
		return next, nil
	})
}

// MakePick records a pick by the team on the clock.
func (a *App) MakePick(ctx context.Context, req MakePickRequest) (*models.Pick, error) {
	if strings.TrimSpace(req.PlayerID) == "" {
		return nil, fmt.Errorf("player_id is required: %w", models.ErrInvalidRequest)
	}
	if req.MadeBy == "" {
		req.MadeBy = req.Team
	}

	var b batch
	defer a.flush(ctx, &b)

	return locked(a, req.DraftID, func() (*models.Pick, error) {
		d, err := a.liveDraft(ctx, req.DraftID)
		if err != nil {
			return nil, err
		}
		if d.OnClockTeam == nil || *d.OnClockTeam != req.Team {
			return nil, fmt.Errorf("team %q cannot pick at overall %d: %w", req.Team, d.CurOverall+1, models.ErrTurnOwnership)
		}

		av, err := a.loadAvailability(ctx, d)
		if err != nil {
			return nil, err
		}
		if !av.isAvailable(req.PlayerID) {
			return nil, fmt.Errorf("player %q: %w", req.PlayerID, models.ErrPlayerUnavailable)
		}

		return a.applyPick(ctx, d, req.Team, req.PlayerID, av.nameFor(req.PlayerID, req.PlayerName), req.MadeBy, &b)
	})
}

// ForcePick fills the current slot without checking turn ownership.
func (a *App) ForcePick(ctx context.Context, req ForcePickRequest) (*models.Pick, error) {
	if strings.TrimSpace(req.PlayerID) == "" {
		return nil, fmt.Errorf("player_id is required: %w", models.ErrInvalidRequest)
	}
	if req.MadeBy == "" {
		req.MadeBy = models.MadeByAdmin
	}

	var b batch
	defer a.flush(ctx, &b)

	return locked(a, req.DraftID, func() (*models.Pick, error) {
		d, err := a.liveDraft(ctx, req.DraftID)
		if err != nil {
			return nil, err
		}

		team := ""
		if d.OnClockTeam != nil {
			team = *d.OnClockTeam
		}
		if req.Team != nil && *req.Team != "" {
			if !d.HasTeam(*req.Team) {
				return nil, fmt.Errorf("team %q is not in this draft: %w", *req.Team, models.ErrInvalidRequest)
			}
			team = *req.Team
		}
		if team == "" {
			return nil, fmt.Errorf("no team on the clock: %w", models.ErrInvalidState)
		}

		picks, err := a.repo.ListPicks(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list picks: %w", err)
		}
		for _, p := range picks {
			if p.PlayerID == req.PlayerID {
				return nil, fmt.Errorf("player %q already picked at overall %d: %w", req.PlayerID, p.Overall, models.ErrPlayerUnavailable)
			}
		}

		name := req.PlayerName
		if name == nil {
			if av, err := a.loadAvailabilityFrom(ctx, d, picks); err != nil {
				log.Warn().Err(err).Str("draft_id", d.ID.String()).Msg("player lookup failed during force pick")
			} else {
				name = av.nameFor(req.PlayerID, nil)
			}
		}

		return a.applyPick(ctx, d, team, req.PlayerID, name, req.MadeBy, &b)
	})
}

// UndoLastPick removes the newest pick and reopens its slot.
func (a *App) UndoLastPick(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	var b batch
	defer a.flush(ctx, &b)

	return locked(a, id, func() (*models.Draft, error) {
		d, err := a.repo.GetDraft(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get draft: %w", err)
		}

		recent, err := a.repo.ListRecentPicks(ctx, id, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to get last pick: %w", err)
		}
		if len(recent) == 0 {
			return nil, fmt.Errorf("draft %s: %w", id, models.ErrEmptyHistory)
		}
		last := recent[0]

		slot, ok := slotAt(d, last.Overall)
		if !ok {
			return nil, fmt.Errorf("pick %d is outside the draft order: %w", last.Overall, models.ErrInvalidState)
		}

		now := a.clock.Now()
		next := d.Next(now)
		next.CurOverall = last.Overall - 1
		next.OnClockTeam = &slot.Team
		switch d.Status {
		case models.DraftStatusLive:
			startClock(next, now, next.Clock())
		case models.DraftStatusPaused:
			ms := next.Clock().Milliseconds()
			next.PausedRemainingMs = &ms
		case models.DraftStatusCompleted:
			next.Status = models.DraftStatusLive
			next.CompletedAt = nil
			startClock(next, now, next.Clock())
		default:
			return nil, fmt.Errorf("draft is %s: %w", d.Status, models.ErrInvalidState)
		}

		m := b.mark()
		b.add(id, events.TypePickUndone, now, events.PickUndonePayload{
			Team:        last.Team,
			PlayerID:    last.PlayerID,
			OverallPick: last.Overall,
		})
		if next.Status == models.DraftStatusLive {
			b.pickStarted(next)
		}
		err = a.repo.RevertPick(ctx, repository.RevertPickRequest{
			Overall: last.Overall,
			Draft:   next,
			Events:  b.since(m),
		})
		if err != nil {
			b.drop(m)
			return nil, fmt.Errorf("failed to undo pick: %w", err)
		}
		b.wake = true
		log.Info().
			Str("draft_id", id.String()).
			Int("overall", last.Overall).
			Str("player_id", last.PlayerID).
			Msg("undid last pick")
		return next, nil
	})
}

// CheckAndAutoPick drafts for the on-clock team once its deadline has passed.
// It returns a nil pick when nothing was due.
func (a *App) CheckAndAutoPick(ctx context.Context, id uuid.UUID) (*models.Pick, error) {
	var b batch
	defer a.flush(ctx, &b)

	return locked(a, id, func() (*models.Pick, error) {
		d, err := a.repo.GetDraft(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get draft: %w", err)
		}
		now := a.clock.Now()
		if d.Status != models.DraftStatusLive || d.DeadlineTs == nil || d.OnClockTeam == nil || now.Before(*d.DeadlineTs) {
			return nil, nil
		}
		team := *d.OnClockTeam

		av, err := a.loadAvailability(ctx, d)
		if err != nil {
			return nil, err
		}
		queue, err := a.queues.GetTeamQueue(ctx, id, team)
		if err != nil {
			return nil, fmt.Errorf("failed to get team queue: %w", err)
		}

		choice, err := a.strat.SelectPlayer(ctx, AutoPickInput{
			Draft:       d,
			Team:        team,
			Queue:       queue,
			Available:   av.sorted(),
			IsAvailable: av.isAvailable,
			Lookup:      av.lookup,
		})
		if err != nil {
			if errors.Is(err, models.ErrPlayerUnavailable) {
				if _, perr := a.pauseLocked(ctx, d, "autopick exhausted", &b); perr != nil {
					return nil, perr
				}
				return nil, fmt.Errorf("autopick for team %q: %w", team, err)
			}
			return nil, fmt.Errorf("autopick strategy failed: %w", err)
		}
		if !av.isAvailable(choice.PlayerID) {
			return nil, fmt.Errorf("autopick chose %q: %w", choice.PlayerID, models.ErrPlayerUnavailable)
		}

		var name *string
		if choice.Name != "" {
			name = &choice.Name
		}
		log.Info().
			Str("draft_id", id.String()).
			Str("team", team).
			Str("player_id", choice.PlayerID).
			Msg("auto-pick timeout firing")
		return a.applyPick(ctx, d, team, choice.PlayerID, name, models.MadeByAutopick, &b)
	})
}

// FetchNextDeadline returns the earliest deadline among live drafts.
func (a *App) FetchNextDeadline(ctx context.Context) (*repository.NextDeadline, error) {
	nd, err := a.repo.FetchNextDeadline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next deadline: %w", err)
	}
	return nd, nil
}

// FetchDraftsDueForPick lists live drafts whose deadline has passed.
func (a *App) FetchDraftsDueForPick(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	ids, err := a.repo.FetchDraftsDueForPick(ctx, a.clock.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch drafts due for pick: %w", err)
	}
	return ids, nil
}

// ListPicks returns every pick of the draft in overall order.
func (a *App) ListPicks(ctx context.Context, id uuid.UUID) ([]models.Pick, error) {
	if _, err := a.repo.GetDraft(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	picks, err := a.repo.ListPicks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	return picks, nil
}

// applyPick writes the pick at the next overall slot and advances the clock. Callers hold the draft lock.
func (a *App) applyPick(ctx context.Context, d *models.Draft, team, playerID string, name *string, madeBy string, b *batch) (*models.Pick, error) {
	slot, ok := slotAt(d, d.CurOverall+1)
	if !ok {
		return nil, fmt.Errorf("no open slot after overall %d: %w", d.CurOverall, models.ErrInvalidState)
	}

	now := a.clock.Now()
	pick := models.Pick{
		DraftID:    d.ID,
		Overall:    slot.Overall,
		Round:      slot.Round,
		Team:       team,
		PlayerID:   playerID,
		PlayerName: name,
		MadeBy:     madeBy,
		MadeAt:     now,
	}

	next := d.Next(now)
	next.CurOverall = slot.Overall
	completed := next.CurOverall >= next.TotalPicks()
	if completed {
		next.Status = models.DraftStatusCompleted
		next.CompletedAt = &now
		next.OnClockTeam = nil
		next.ClockStartedAt = nil
		next.DeadlineTs = nil
		next.PausedRemainingMs = nil
	} else {
		startClock(next, now, next.Clock())
	}

	m := b.mark()
	playerName := ""
	if name != nil {
		playerName = *name
	}
	b.add(d.ID, events.TypePickMade, now, events.PickMadePayload{
		Team:        team,
		PlayerID:    playerID,
		PlayerName:  playerName,
		Round:       pick.Round,
		OverallPick: pick.Overall,
		MadeBy:      madeBy,
		MadeAt:      now,
	})
	if completed {
		var duration time.Duration
		if next.StartedAt != nil {
			duration = now.Sub(*next.StartedAt)
		}
		b.add(d.ID, events.TypeDraftCompleted, now, events.DraftCompletedPayload{
			DraftID:     d.ID.String(),
			CompletedAt: now,
			Duration:    duration.String(),
			TotalPicks:  next.TotalPicks(),
		})
	} else {
		b.pickStarted(next)
	}

	err := a.repo.ApplyPick(ctx, repository.ApplyPickRequest{
		Pick:   pick,
		Draft:  next,
		Events: b.since(m),
	})
	if err != nil {
		b.drop(m)
		return nil, fmt.Errorf("failed to apply pick: %w", err)
	}
	b.wake = true
	if completed {
		log.Info().Str("draft_id", d.ID.String()).Msg("draft completed")
	}

	log.Info().
		Str("draft_id", d.ID.String()).
		Int("overall", pick.Overall).
		Str("team", team).
		Str("player_id", playerID).
		Str("made_by", madeBy).
		Msg("pick made")
	return &pick, nil
}

// liveDraft loads a draft and rejects it unless picks are currently allowed.
func (a *App) liveDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	d, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if d.Status != models.DraftStatusLive {
		return nil, fmt.Errorf("cannot pick while draft is %s: %w", d.Status, models.ErrInvalidState)
	}
	return d, nil
}

// startClock puts the owner of the next open slot on the clock with duration left.
func startClock(d *models.Draft, now time.Time, left time.Duration) {
	if slot, ok := slotAt(d, d.CurOverall+1); ok {
		d.OnClockTeam = &slot.Team
	}
	deadline := now.Add(left)
	d.ClockStartedAt = &now
	d.DeadlineTs = &deadline
	d.PausedRemainingMs = nil
}

func validateCreateDraftRequest(req CreateDraftRequest) error {
	if req.Rounds < 1 {
		return fmt.Errorf("rounds must be greater than 0: %w", models.ErrInvalidRequest)
	}
	if len(req.Teams) == 0 {
		return fmt.Errorf("at least one team is required: %w", models.ErrInvalidRequest)
	}
	if req.ClockSeconds < 1 {
		return fmt.Errorf("clock_seconds must be greater than 0: %w", models.ErrInvalidRequest)
	}
	seen := make(map[string]bool, len(req.Teams))
	for _, t := range req.Teams {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("team ids must not be empty: %w", models.ErrInvalidRequest)
		}
		if seen[t] {
			return fmt.Errorf("duplicate team %q: %w", t, models.ErrInvalidRequest)
		}
		seen[t] = true
	}
	return nil
}

// validateStatusTransition checks the lifecycle table for op.
func validateStatusTransition(current, next models.DraftStatus, op string) error {
	allowedTransitions := map[models.DraftStatus][]models.DraftStatus{
		models.DraftStatusNotStarted: {models.DraftStatusLive},
		models.DraftStatusLive:       {models.DraftStatusPaused, models.DraftStatusCompleted},
		models.DraftStatusPaused:     {models.DraftStatusLive},
		models.DraftStatusCompleted:  {},
	}

	allowedNext, exists := allowedTransitions[current]
	if !exists {
		return fmt.Errorf("unknown current status %s: %w", current, models.ErrInvalidState)
	}
	for _, allowed := range allowedNext {
		if next == allowed {
			return nil
		}
	}
	return fmt.Errorf("cannot %s a draft that is %s: %w", op, current, models.ErrInvalidState)
}

// locked runs fn while holding the per-draft lock.
func locked[T any](a *App, id uuid.UUID, fn func() (T, error)) (T, error) {
	unlock := a.locks.Lock(id)
	defer unlock()
	return fn()
}

// batch collects events produced under the draft lock. Each group travels with
// the store write that produced it and is delivered to the sink after the lock is released.
type batch struct {
	events []events.Event
	wake   bool
}

func (b *batch) mark() int { return len(b.events) }

// since returns the events added after m.
func (b *batch) since(m int) []events.Event { return b.events[m:] }

// drop discards the events added after m once their write has failed.
func (b *batch) drop(m int) { b.events = b.events[:m] }

func (b *batch) add(draftID uuid.UUID, typ events.Type, at time.Time, payload any) {
	ev, err := events.New(draftID, typ, at, payload)
	if err != nil {
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("failed to build event")
		return
	}
	b.events = append(b.events, ev)
}

func (b *batch) pickStarted(d *models.Draft) {
	slot, ok := slotAt(d, d.CurOverall+1)
	if !ok || d.ClockStartedAt == nil || d.DeadlineTs == nil {
		return
	}
	b.add(d.ID, events.TypePickStarted, *d.ClockStartedAt, events.PickStartedPayload{
		Team:           slot.Team,
		Round:          slot.Round,
		PickInRound:    slot.PickInRound,
		OverallPick:    slot.Overall,
		StartedAt:      *d.ClockStartedAt,
		TimeoutAt:      *d.DeadlineTs,
		TimePerPickSec: d.ClockSeconds,
	})
	b.wake = true
}

func (a *App) flush(ctx context.Context, b *batch) {
	for _, ev := range b.events {
		if err := a.sink.Emit(ctx, ev); err != nil {
			log.Error().
				Err(err).
				Str("draft_id", ev.DraftID.String()).
				Str("event_type", string(ev.Type)).
				Msg("failed to emit event")
			// Don't fail the operation, just log the error
		}
	}
	if b.wake && a.onDeadline != nil {
		a.onDeadline()
	}
}
