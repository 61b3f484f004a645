package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const draftColumns = `id, league_id, year, rounds, teams, clock_seconds, snake, status, cur_overall,
       on_clock_team, clock_started_at, deadline_ts, paused_remaining_ms,
       started_at, completed_at, created_at, updated_at, version`

func scanDraft(row interface{ Scan(...interface{}) error }) (Draft, error) {
	var i Draft
	err := row.Scan(
		&i.ID,
		&i.LeagueID,
		&i.Year,
		&i.Rounds,
		pq.Array(&i.Teams),
		&i.ClockSeconds,
		&i.Snake,
		&i.Status,
		&i.CurOverall,
		&i.OnClockTeam,
		&i.ClockStartedAt,
		&i.DeadlineTs,
		&i.PausedRemainingMs,
		&i.StartedAt,
		&i.CompletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.Version,
	)
	return i, err
}

const insertDraft = `
INSERT INTO drafts (
    id, league_id, year, rounds, teams, clock_seconds, snake, status, cur_overall, created_at, updated_at, version
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $9, $10)
`

type InsertDraftParams struct {
	ID           uuid.UUID
	LeagueID     string
	Year         int32
	Rounds       int32
	Teams        []string
	ClockSeconds int32
	Snake        bool
	Status       string
	CreatedAt    time.Time
	Version      int64
}

func (q *Queries) InsertDraft(ctx context.Context, arg InsertDraftParams) error {
	_, err := q.db.ExecContext(ctx, insertDraft,
		arg.ID,
		arg.LeagueID,
		arg.Year,
		arg.Rounds,
		pq.Array(arg.Teams),
		arg.ClockSeconds,
		arg.Snake,
		arg.Status,
		arg.CreatedAt,
		arg.Version,
	)
	return err
}

const insertDraftSlots = `
INSERT INTO draft_slots (draft_id, overall, round, pick_in_round, team)
SELECT $1::uuid, s.overall, s.round, s.pick_in_round, s.team
FROM unnest($2::int[], $3::int[], $4::int[], $5::text[]) AS s(overall, round, pick_in_round, team)
`

type InsertDraftSlotsParams struct {
	DraftID      uuid.UUID
	Overalls     []int32
	Rounds       []int32
	PickInRounds []int32
	Teams        []string
}

func (q *Queries) InsertDraftSlots(ctx context.Context, arg InsertDraftSlotsParams) error {
	_, err := q.db.ExecContext(ctx, insertDraftSlots,
		arg.DraftID,
		pq.Array(arg.Overalls),
		pq.Array(arg.Rounds),
		pq.Array(arg.PickInRounds),
		pq.Array(arg.Teams),
	)
	return err
}

var getDraft = `SELECT ` + draftColumns + ` FROM drafts WHERE id = $1`

func (q *Queries) GetDraft(ctx context.Context, id uuid.UUID) (Draft, error) {
	row := q.db.QueryRowContext(ctx, getDraft, id)
	return scanDraft(row)
}

const getActiveOrLatestDraftID = `
SELECT id FROM drafts
WHERE league_id = $1
ORDER BY (status IN ('LIVE', 'PAUSED')) DESC, created_at DESC, id DESC
LIMIT 1
`

func (q *Queries) GetActiveOrLatestDraftID(ctx context.Context, leagueID string) (uuid.UUID, error) {
	row := q.db.QueryRowContext(ctx, getActiveOrLatestDraftID, leagueID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}

const updateDraftState = `
UPDATE drafts SET
    status              = $2,
    clock_seconds       = $3,
    cur_overall         = $4,
    on_clock_team       = $5,
    clock_started_at    = $6,
    deadline_ts         = $7,
    paused_remaining_ms = $8,
    started_at          = $9,
    completed_at        = $10,
    updated_at          = $11,
    version             = $12
WHERE id = $1
  AND version = $12::bigint - 1
`

type UpdateDraftStateParams struct {
	ID                uuid.UUID
	Status            string
	ClockSeconds      int32
	CurOverall        int32
	OnClockTeam       sql.NullString
	ClockStartedAt    sql.NullTime
	DeadlineTs        sql.NullTime
	PausedRemainingMs sql.NullInt64
	StartedAt         sql.NullTime
	CompletedAt       sql.NullTime
	UpdatedAt         time.Time
	// Version is the new version; the row must currently hold Version-1.
	Version int64
}

// UpdateDraftState returns the number of rows written; zero means missing or guarded out.
func (q *Queries) UpdateDraftState(ctx context.Context, arg UpdateDraftStateParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateDraftState,
		arg.ID,
		arg.Status,
		arg.ClockSeconds,
		arg.CurOverall,
		arg.OnClockTeam,
		arg.ClockStartedAt,
		arg.DeadlineTs,
		arg.PausedRemainingMs,
		arg.StartedAt,
		arg.CompletedAt,
		arg.UpdatedAt,
		arg.Version,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listDraftSlots = `
SELECT draft_id, overall, round, pick_in_round, team
FROM draft_slots
WHERE draft_id = $1 AND overall >= $2
ORDER BY overall
LIMIT $3
`

type ListDraftSlotsParams struct {
	DraftID     uuid.UUID
	FromOverall int32
	// Limit is unbounded when not valid.
	Limit sql.NullInt32
}

func (q *Queries) ListDraftSlots(ctx context.Context, arg ListDraftSlotsParams) ([]DraftSlot, error) {
	rows, err := q.db.QueryContext(ctx, listDraftSlots, arg.DraftID, arg.FromOverall, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DraftSlot
	for rows.Next() {
		var i DraftSlot
		if err := rows.Scan(&i.DraftID, &i.Overall, &i.Round, &i.PickInRound, &i.Team); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const fetchNextDeadline = `
SELECT id, deadline_ts
FROM drafts
WHERE status = 'LIVE' AND deadline_ts IS NOT NULL
ORDER BY deadline_ts
LIMIT 1
`

type FetchNextDeadlineRow struct {
	ID         uuid.UUID
	DeadlineTs sql.NullTime
}

func (q *Queries) FetchNextDeadline(ctx context.Context) (FetchNextDeadlineRow, error) {
	row := q.db.QueryRowContext(ctx, fetchNextDeadline)
	var i FetchNextDeadlineRow
	err := row.Scan(&i.ID, &i.DeadlineTs)
	return i, err
}

const fetchDraftsDueForPick = `
SELECT id
FROM drafts
WHERE status = 'LIVE' AND deadline_ts <= $1
ORDER BY deadline_ts
LIMIT $2
`

type FetchDraftsDueForPickParams struct {
	Now   time.Time
	Limit int32
}

func (q *Queries) FetchDraftsDueForPick(ctx context.Context, arg FetchDraftsDueForPickParams) ([]uuid.UUID, error) {
	rows, err := q.db.QueryContext(ctx, fetchDraftsDueForPick, arg.Now, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
