package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const outboxColumns = `id, draft_id, event_type, payload, created_at, sent_at`

const insertOutboxEvent = `
INSERT INTO draft_outbox (id, draft_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5)
`

type InsertOutboxEventParams struct {
	ID        uuid.UUID
	DraftID   uuid.UUID
	EventType string
	Payload   pqtype.NullRawMessage
	CreatedAt time.Time
}

func (q *Queries) InsertOutboxEvent(ctx context.Context, arg InsertOutboxEventParams) error {
	_, err := q.db.ExecContext(ctx, insertOutboxEvent, arg.ID, arg.DraftID, arg.EventType, arg.Payload, arg.CreatedAt)
	return err
}

const fetchOutboxByID = `SELECT ` + outboxColumns + ` FROM draft_outbox WHERE id = $1 AND sent_at IS NULL`

func (q *Queries) FetchOutboxByID(ctx context.Context, id uuid.UUID) (DraftOutbox, error) {
	row := q.db.QueryRowContext(ctx, fetchOutboxByID, id)
	var i DraftOutbox
	err := row.Scan(&i.ID, &i.DraftID, &i.EventType, &i.Payload, &i.CreatedAt, &i.SentAt)
	return i, err
}

const fetchUnsentOutbox = `
SELECT ` + outboxColumns + `
FROM draft_outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1
`

func (q *Queries) FetchUnsentOutbox(ctx context.Context, limit int32) ([]DraftOutbox, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DraftOutbox
	for rows.Next() {
		var i DraftOutbox
		if err := rows.Scan(&i.ID, &i.DraftID, &i.EventType, &i.Payload, &i.CreatedAt, &i.SentAt); err != nil {
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

const markOutboxSent = `UPDATE draft_outbox SET sent_at = now() WHERE id = $1`

func (q *Queries) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, markOutboxSent, id)
	return err
}
