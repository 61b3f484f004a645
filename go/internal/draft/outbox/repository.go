package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	draftdb "github.com/mcdev12/draftroom/go/internal/draft/db"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/sqlc-dev/pqtype"
)

// Repository serves stored outbox events back to the Relay.
type Repository struct {
	queries *draftdb.Queries
}

func NewRepository(conn draftdb.DBTX) *Repository {
	return &Repository{
		queries: draftdb.New(conn),
	}
}

// Write stores evs through q, which is normally bound to the transaction that
// changed the draft. The insert trigger notifies the relay once it commits.
func Write(ctx context.Context, q *draftdb.Queries, evs []events.Event) error {
	for _, ev := range evs {
		err := q.InsertOutboxEvent(ctx, draftdb.InsertOutboxEventParams{
			ID:        ev.ID,
			DraftID:   ev.DraftID,
			EventType: string(ev.Type),
			Payload:   pqtype.NullRawMessage{RawMessage: ev.Payload, Valid: len(ev.Payload) > 0},
			CreatedAt: ev.OccurredAt,
		})
		if err != nil {
			return fmt.Errorf("failed to insert %s outbox event: %w", ev.Type, err)
		}
	}
	return nil
}

func (r *Repository) FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := r.queries.FetchUnsentOutbox(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}

	out := make([]OutboxEvent, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	return out, nil
}

// FetchOutboxByID returns models.ErrNotFound when the event is missing or already sent.
func (r *Repository) FetchOutboxByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error) {
	row, err := r.queries.FetchOutboxByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("outbox event %s not found or already sent: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch outbox event by ID: %w", err)
	}
	ev := fromRow(row)
	return &ev, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	if err := r.queries.MarkOutboxSent(ctx, id); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}
