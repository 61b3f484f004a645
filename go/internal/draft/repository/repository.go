package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/db"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/outbox"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/mcdev12/draftroom/go/internal/sqlutil"
)

// Repository stores drafts, picks, queues and pools in Postgres.
type Repository struct {
	db      *sql.DB
	queries *db.Queries
	outbox  bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithOutbox stores the events passed to each write in draft_outbox, inside the
// same transaction as the write.
func WithOutbox() Option {
	return func(r *Repository) { r.outbox = true }
}

func NewRepository(conn *sql.DB, opts ...Option) *Repository {
	r := &Repository{
		db:      conn,
		queries: db.New(conn),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// record writes evs to the outbox through the transaction's queries when enabled.
func (r *Repository) record(ctx context.Context, q *db.Queries, evs []events.Event) error {
	if !r.outbox || len(evs) == 0 {
		return nil
	}
	return outbox.Write(ctx, q, evs)
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return err
}

func (r *Repository) CreateDraft(ctx context.Context, d *models.Draft, slots []models.PickSlot, evs []events.Event) error {
	overalls := make([]int32, len(slots))
	rounds := make([]int32, len(slots))
	inRound := make([]int32, len(slots))
	teams := make([]string, len(slots))
	for i, s := range slots {
		overalls[i] = int32(s.Overall)
		rounds[i] = int32(s.Round)
		inRound[i] = int32(s.PickInRound)
		teams[i] = s.Team
	}

	return sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *db.Queries) error {
		err := q.InsertDraft(ctx, db.InsertDraftParams{
			ID:           d.ID,
			LeagueID:     d.LeagueID,
			Year:         int32(d.Year),
			Rounds:       int32(d.Rounds),
			Teams:        d.Teams,
			ClockSeconds: int32(d.ClockSeconds),
			Snake:        d.Snake,
			Status:       string(d.Status),
			CreatedAt:    d.CreatedAt,
			Version:      d.Version,
		})
		if err != nil {
			return fmt.Errorf("failed to insert draft: %w", err)
		}
		err = q.InsertDraftSlots(ctx, db.InsertDraftSlotsParams{
			DraftID:      d.ID,
			Overalls:     overalls,
			Rounds:       rounds,
			PickInRounds: inRound,
			Teams:        teams,
		})
		if err != nil {
			return fmt.Errorf("failed to insert draft slots: %w", err)
		}
		return r.record(ctx, q, evs)
	})
}

func (r *Repository) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	row, err := r.queries.GetDraft(ctx, id)
	if err != nil {
		return nil, notFound(err, "draft "+id.String())
	}
	return dbDraftToModel(row)
}

func (r *Repository) GetActiveOrLatestDraftID(ctx context.Context, leagueID string) (uuid.UUID, error) {
	id, err := r.queries.GetActiveOrLatestDraftID(ctx, leagueID)
	if err != nil {
		return uuid.Nil, notFound(err, fmt.Sprintf("no draft for league %q", leagueID))
	}
	return id, nil
}

// UpdateDraftState writes d when the stored row is still at d.Version-1.
func (r *Repository) UpdateDraftState(ctx context.Context, d *models.Draft, evs []events.Event) error {
	return sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *db.Queries) error {
		if err := guardedUpdate(ctx, q, d); err != nil {
			return err
		}
		return r.record(ctx, q, evs)
	})
}

func (r *Repository) ListSlots(ctx context.Context, draftID uuid.UUID, fromOverall, limit int) ([]models.PickSlot, error) {
	var lim sql.NullInt32
	if limit > 0 {
		lim = sqlutil.ToSqlInt32Direct(limit)
	}
	rows, err := r.queries.ListDraftSlots(ctx, db.ListDraftSlotsParams{
		DraftID:     draftID,
		FromOverall: int32(fromOverall),
		Limit:       lim,
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.PickSlot, 0, len(rows))
	for _, s := range rows {
		out = append(out, models.PickSlot{
			DraftID:     s.DraftID,
			Overall:     int(s.Overall),
			Round:       int(s.Round),
			PickInRound: int(s.PickInRound),
			Team:        s.Team,
		})
	}
	return out, nil
}

func (r *Repository) ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error) {
	rows, err := r.queries.ListDraftPicks(ctx, draftID)
	if err != nil {
		return nil, err
	}
	return dbPicksToModel(rows), nil
}

func (r *Repository) ListRecentPicks(ctx context.Context, draftID uuid.UUID, limit int) ([]models.Pick, error) {
	rows, err := r.queries.ListRecentDraftPicks(ctx, db.ListRecentDraftPicksParams{
		DraftID: draftID,
		Limit:   int32(limit),
	})
	if err != nil {
		return nil, err
	}
	return dbPicksToModel(rows), nil
}

// ApplyPick advances the draft row under the version guard, inserts the pick
// and drops the player from the picking team's queue.
func (r *Repository) ApplyPick(ctx context.Context, req ApplyPickRequest) error {
	return sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *db.Queries) error {
		if err := guardedUpdate(ctx, q, req.Draft); err != nil {
			return err
		}

		err := q.InsertDraftPick(ctx, db.InsertDraftPickParams{
			DraftID:    req.Pick.DraftID,
			Overall:    int32(req.Pick.Overall),
			Round:      int32(req.Pick.Round),
			Team:       req.Pick.Team,
			PlayerID:   req.Pick.PlayerID,
			PlayerName: sqlutil.ToSqlString(req.Pick.PlayerName),
			MadeBy:     req.Pick.MadeBy,
			MadeAt:     req.Pick.MadeAt,
		})
		switch {
		case db.IsUniqueViolation(err, db.PickPlayerUniqueConstraint):
			return fmt.Errorf("player %q already picked: %w", req.Pick.PlayerID, models.ErrPlayerUnavailable)
		case db.IsUniqueViolation(err, ""):
			return fmt.Errorf("overall %d already filled: %w", req.Pick.Overall, models.ErrStaleDraft)
		case err != nil:
			return fmt.Errorf("failed to insert pick: %w", err)
		}

		err = q.RemoveFromTeamQueue(ctx, db.RemoveFromTeamQueueParams{
			DraftID:   req.Pick.DraftID,
			Team:      req.Pick.Team,
			PlayerID:  req.Pick.PlayerID,
			UpdatedAt: req.Pick.MadeAt,
		})
		if err != nil {
			return fmt.Errorf("failed to update team queue: %w", err)
		}
		return r.record(ctx, q, req.Events)
	})
}

func (r *Repository) RevertPick(ctx context.Context, req RevertPickRequest) error {
	return sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *db.Queries) error {
		if err := guardedUpdate(ctx, q, req.Draft); err != nil {
			return err
		}
		n, err := q.DeleteDraftPick(ctx, db.DeleteDraftPickParams{
			DraftID: req.Draft.ID,
			Overall: int32(req.Overall),
		})
		if err != nil {
			return fmt.Errorf("failed to delete pick: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("pick %d: %w", req.Overall, models.ErrNotFound)
		}
		return r.record(ctx, q, req.Events)
	})
}

// guardedUpdate writes d only while the stored version is d.Version-1.
func guardedUpdate(ctx context.Context, q *db.Queries, d *models.Draft) error {
	n, err := q.UpdateDraftState(ctx, draftStateParams(d))
	if err != nil {
		return fmt.Errorf("failed to update draft state: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := q.GetDraft(ctx, d.ID); err != nil {
		return notFound(err, "draft "+d.ID.String())
	}
	return fmt.Errorf("draft %s changed since version %d: %w", d.ID, d.Version-1, models.ErrStaleDraft)
}

func (r *Repository) FetchNextDeadline(ctx context.Context) (*NextDeadline, error) {
	row, err := r.queries.FetchNextDeadline(ctx)
	if err != nil {
		return nil, notFound(err, "no live draft with a deadline")
	}
	return &NextDeadline{
		DraftID:  row.ID,
		Deadline: sqlutil.FromSqlTime(row.DeadlineTs),
	}, nil
}

func (r *Repository) FetchDraftsDueForPick(ctx context.Context, now time.Time, limit int32) ([]uuid.UUID, error) {
	ids, err := r.queries.FetchDraftsDueForPick(ctx, db.FetchDraftsDueForPickParams{Now: now, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due deadlines: %w", err)
	}
	return ids, nil
}

func (r *Repository) SetTeamQueue(ctx context.Context, req SetQueueRequest) error {
	return sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *db.Queries) error {
		err := q.UpsertTeamQueue(ctx, db.UpsertTeamQueueParams{
			DraftID:   req.DraftID,
			Team:      req.Team,
			PlayerIDs: req.PlayerIDs,
			UpdatedAt: req.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to save team queue: %w", err)
		}
		return r.record(ctx, q, req.Events)
	})
}

func (r *Repository) GetTeamQueue(ctx context.Context, draftID uuid.UUID, team string) ([]string, error) {
	ids, err := r.queries.GetTeamQueue(ctx, db.GetTeamQueueParams{DraftID: draftID, Team: team})
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// ReplacePool swaps the draft's uploaded pool in one transaction. An empty list removes it.
func (r *Repository) ReplacePool(ctx context.Context, draftID uuid.UUID, players []models.PoolPlayer, evs []events.Event) error {
	params := db.InsertPoolPlayersParams{
		DraftID:   draftID,
		PlayerIDs: make([]string, len(players)),
		Names:     make([]string, len(players)),
		Positions: make([]string, len(players)),
		NflTeams:  make([]string, len(players)),
		Ranks:     make([]int32, len(players)),
	}
	for i, p := range players {
		params.PlayerIDs[i] = p.PlayerID
		params.Names[i] = p.Name
		params.Positions[i] = p.Position
		if p.NFLTeam != nil {
			params.NflTeams[i] = *p.NFLTeam
		}
		params.Ranks[i] = -1
		if p.Rank != nil {
			params.Ranks[i] = int32(*p.Rank)
		}
	}

	return sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *db.Queries) error {
		if err := q.DeletePoolPlayers(ctx, draftID); err != nil {
			return fmt.Errorf("failed to clear pool: %w", err)
		}
		if len(players) > 0 {
			if err := q.InsertPoolPlayers(ctx, params); err != nil {
				return fmt.Errorf("failed to insert pool: %w", err)
			}
		}
		return r.record(ctx, q, evs)
	})
}

func (r *Repository) ListPool(ctx context.Context, draftID uuid.UUID) ([]models.PoolPlayer, error) {
	rows, err := r.queries.ListPoolPlayers(ctx, draftID)
	if err != nil {
		return nil, err
	}
	out := make([]models.PoolPlayer, 0, len(rows))
	for _, p := range rows {
		out = append(out, models.PoolPlayer{
			PlayerID: p.PlayerID,
			Name:     p.Name,
			Position: p.Position,
			NFLTeam:  sqlutil.FromSqlStringPtr(p.NflTeam),
			Rank:     sqlutil.FromSqlInt32(p.Rank),
		})
	}
	return out, nil
}

func (r *Repository) CountPool(ctx context.Context, draftID uuid.UUID) (int, error) {
	n, err := r.queries.CountPoolPlayers(ctx, draftID)
	return int(n), err
}

func draftStateParams(d *models.Draft) db.UpdateDraftStateParams {
	return db.UpdateDraftStateParams{
		ID:                d.ID,
		Status:            string(d.Status),
		ClockSeconds:      int32(d.ClockSeconds),
		CurOverall:        int32(d.CurOverall),
		OnClockTeam:       sqlutil.ToSqlString(d.OnClockTeam),
		ClockStartedAt:    sqlutil.ToSqlTime(d.ClockStartedAt),
		DeadlineTs:        sqlutil.ToSqlTime(d.DeadlineTs),
		PausedRemainingMs: sqlutil.ToSqlInt64(d.PausedRemainingMs),
		StartedAt:         sqlutil.ToSqlTime(d.StartedAt),
		CompletedAt:       sqlutil.ToSqlTime(d.CompletedAt),
		UpdatedAt:         d.UpdatedAt,
		Version:           d.Version,
	}
}

func dbDraftToModel(row db.Draft) (*models.Draft, error) {
	status := models.DraftStatus(row.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("draft %s has unknown status %q", row.ID, row.Status)
	}
	return &models.Draft{
		ID:                row.ID,
		LeagueID:          row.LeagueID,
		Year:              int(row.Year),
		Rounds:            int(row.Rounds),
		Teams:             row.Teams,
		ClockSeconds:      int(row.ClockSeconds),
		Snake:             row.Snake,
		Status:            status,
		CurOverall:        int(row.CurOverall),
		OnClockTeam:       sqlutil.FromSqlStringPtr(row.OnClockTeam),
		ClockStartedAt:    sqlutil.FromSqlTime(row.ClockStartedAt),
		DeadlineTs:        sqlutil.FromSqlTime(row.DeadlineTs),
		PausedRemainingMs: sqlutil.FromSqlInt64(row.PausedRemainingMs),
		StartedAt:         sqlutil.FromSqlTime(row.StartedAt),
		CompletedAt:       sqlutil.FromSqlTime(row.CompletedAt),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
		Version:           row.Version,
	}, nil
}

func dbPicksToModel(rows []db.DraftPick) []models.Pick {
	out := make([]models.Pick, 0, len(rows))
	for _, p := range rows {
		out = append(out, models.Pick{
			DraftID:    p.DraftID,
			Overall:    int(p.Overall),
			Round:      int(p.Round),
			Team:       p.Team,
			PlayerID:   p.PlayerID,
			PlayerName: sqlutil.FromSqlStringPtr(p.PlayerName),
			MadeBy:     p.MadeBy,
			MadeAt:     p.MadeAt,
		})
	}
	return out
}
