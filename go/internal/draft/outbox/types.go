package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	draftdb "github.com/mcdev12/draftroom/go/internal/draft/db"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

// OutboxEvent is a stored event waiting to be relayed.
type OutboxEvent struct {
	ID        uuid.UUID       `json:"id"`
	DraftID   uuid.UUID       `json:"draft_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// Event converts the row back into the envelope that was emitted.
func (o OutboxEvent) Event() events.Event {
	return events.Event{
		ID:         o.ID,
		DraftID:    o.DraftID,
		Type:       events.Type(o.EventType),
		OccurredAt: o.CreatedAt,
		Payload:    o.Payload,
	}
}

func fromRow(row draftdb.DraftOutbox) OutboxEvent {
	ev := OutboxEvent{
		ID:        row.ID,
		DraftID:   row.DraftID,
		EventType: row.EventType,
		CreatedAt: row.CreatedAt,
	}
	if row.Payload.Valid {
		ev.Payload = row.Payload.RawMessage
	}
	if row.SentAt.Valid {
		t := row.SentAt.Time
		ev.SentAt = &t
	}
	return ev
}
