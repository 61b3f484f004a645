package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// PickPlayerUniqueConstraint guards a player being drafted twice.
const PickPlayerUniqueConstraint = "draft_picks_player_unique"

const pickColumns = `draft_id, overall, round, team, player_id, player_name, made_by, made_at`

const insertDraftPick = `
INSERT INTO draft_picks (` + pickColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type InsertDraftPickParams struct {
	DraftID    uuid.UUID
	Overall    int32
	Round      int32
	Team       string
	PlayerID   string
	PlayerName sql.NullString
	MadeBy     string
	MadeAt     time.Time
}

func (q *Queries) InsertDraftPick(ctx context.Context, arg InsertDraftPickParams) error {
	_, err := q.db.ExecContext(ctx, insertDraftPick,
		arg.DraftID,
		arg.Overall,
		arg.Round,
		arg.Team,
		arg.PlayerID,
		arg.PlayerName,
		arg.MadeBy,
		arg.MadeAt,
	)
	return err
}

const deleteDraftPick = `DELETE FROM draft_picks WHERE draft_id = $1 AND overall = $2`

type DeleteDraftPickParams struct {
	DraftID uuid.UUID
	Overall int32
}

func (q *Queries) DeleteDraftPick(ctx context.Context, arg DeleteDraftPickParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteDraftPick, arg.DraftID, arg.Overall)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listDraftPicks = `SELECT ` + pickColumns + ` FROM draft_picks WHERE draft_id = $1 ORDER BY overall`

func (q *Queries) ListDraftPicks(ctx context.Context, draftID uuid.UUID) ([]DraftPick, error) {
	return q.queryPicks(ctx, listDraftPicks, draftID)
}

const listRecentDraftPicks = `SELECT ` + pickColumns + ` FROM draft_picks WHERE draft_id = $1 ORDER BY overall DESC LIMIT $2`

type ListRecentDraftPicksParams struct {
	DraftID uuid.UUID
	Limit   int32
}

func (q *Queries) ListRecentDraftPicks(ctx context.Context, arg ListRecentDraftPicksParams) ([]DraftPick, error) {
	return q.queryPicks(ctx, listRecentDraftPicks, arg.DraftID, arg.Limit)
}

func (q *Queries) queryPicks(ctx context.Context, query string, args ...interface{}) ([]DraftPick, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DraftPick
	for rows.Next() {
		var i DraftPick
		if err := rows.Scan(
			&i.DraftID,
			&i.Overall,
			&i.Round,
			&i.Team,
			&i.PlayerID,
			&i.PlayerName,
			&i.MadeBy,
			&i.MadeAt,
		); err != nil {
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
