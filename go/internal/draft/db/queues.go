package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const upsertTeamQueue = `
INSERT INTO draft_team_queues (draft_id, team, player_ids, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (draft_id, team) DO UPDATE
SET player_ids = EXCLUDED.player_ids,
    updated_at = EXCLUDED.updated_at
`

type UpsertTeamQueueParams struct {
	DraftID   uuid.UUID
	Team      string
	PlayerIDs []string
	UpdatedAt time.Time
}

func (q *Queries) UpsertTeamQueue(ctx context.Context, arg UpsertTeamQueueParams) error {
	ids := arg.PlayerIDs
	if ids == nil {
		ids = []string{}
	}
	_, err := q.db.ExecContext(ctx, upsertTeamQueue, arg.DraftID, arg.Team, pq.Array(ids), arg.UpdatedAt)
	return err
}

const getTeamQueue = `SELECT player_ids FROM draft_team_queues WHERE draft_id = $1 AND team = $2`

type GetTeamQueueParams struct {
	DraftID uuid.UUID
	Team    string
}

func (q *Queries) GetTeamQueue(ctx context.Context, arg GetTeamQueueParams) ([]string, error) {
	row := q.db.QueryRowContext(ctx, getTeamQueue, arg.DraftID, arg.Team)
	var ids []string
	err := row.Scan(pq.Array(&ids))
	return ids, err
}

const removeFromTeamQueue = `
UPDATE draft_team_queues
SET player_ids = array_remove(player_ids, $3::text),
    updated_at = $4
WHERE draft_id = $1 AND team = $2 AND $3::text = ANY (player_ids)
`

type RemoveFromTeamQueueParams struct {
	DraftID   uuid.UUID
	Team      string
	PlayerID  string
	UpdatedAt time.Time
}

func (q *Queries) RemoveFromTeamQueue(ctx context.Context, arg RemoveFromTeamQueueParams) error {
	_, err := q.db.ExecContext(ctx, removeFromTeamQueue, arg.DraftID, arg.Team, arg.PlayerID, arg.UpdatedAt)
	return err
}
