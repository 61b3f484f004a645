package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const deletePoolPlayers = `DELETE FROM draft_pool_players WHERE draft_id = $1`

func (q *Queries) DeletePoolPlayers(ctx context.Context, draftID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deletePoolPlayers, draftID)
	return err
}

// NULL entries in nfl_teams and ranks come through as empty string and -1 and are mapped back to NULL.
const insertPoolPlayers = `
INSERT INTO draft_pool_players (draft_id, player_id, name, position, nfl_team, rank)
SELECT $1::uuid, p.player_id, p.name, p.position, NULLIF(p.nfl_team, ''), NULLIF(p.rank, -1)
FROM unnest($2::text[], $3::text[], $4::text[], $5::text[], $6::int[])
    AS p(player_id, name, position, nfl_team, rank)
`

type InsertPoolPlayersParams struct {
	DraftID   uuid.UUID
	PlayerIDs []string
	Names     []string
	Positions []string
	NflTeams  []string
	Ranks     []int32
}

func (q *Queries) InsertPoolPlayers(ctx context.Context, arg InsertPoolPlayersParams) error {
	_, err := q.db.ExecContext(ctx, insertPoolPlayers,
		arg.DraftID,
		pq.Array(arg.PlayerIDs),
		pq.Array(arg.Names),
		pq.Array(arg.Positions),
		pq.Array(arg.NflTeams),
		pq.Array(arg.Ranks),
	)
	return err
}

const listPoolPlayers = `
SELECT draft_id, player_id, name, position, nfl_team, rank
FROM draft_pool_players
WHERE draft_id = $1
ORDER BY rank NULLS LAST, name, player_id
`

func (q *Queries) ListPoolPlayers(ctx context.Context, draftID uuid.UUID) ([]DraftPoolPlayer, error) {
	rows, err := q.db.QueryContext(ctx, listPoolPlayers, draftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DraftPoolPlayer
	for rows.Next() {
		var i DraftPoolPlayer
		if err := rows.Scan(&i.DraftID, &i.PlayerID, &i.Name, &i.Position, &i.NflTeam, &i.Rank); err != nil {
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

const countPoolPlayers = `SELECT count(*) FROM draft_pool_players WHERE draft_id = $1`

func (q *Queries) CountPoolPlayers(ctx context.Context, draftID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countPoolPlayers, draftID)
	var n sql.NullInt64
	err := row.Scan(&n)
	return n.Int64, err
}
