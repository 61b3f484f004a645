package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names an event kind. It is used as the NATS subject suffix and the outbox event_type column.
type Type string

const (
	TypeDraftCreated   Type = "DraftCreated"
	TypeDraftStarted   Type = "DraftStarted"
	TypeDraftPaused    Type = "DraftPaused"
	TypeDraftResumed   Type = "DraftResumed"
	TypeDraftCompleted Type = "DraftCompleted"
	TypeClockChanged   Type = "ClockChanged"
	TypePickStarted    Type = "PickStarted"
	TypePickMade       Type = "PickMade"
	TypePickUndone     Type = "PickUndone"
	TypeQueueUpdated   Type = "QueueUpdated"
	TypePoolUpdated    Type = "PoolUpdated"
)

// Event is the envelope delivered to every sink.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	DraftID    uuid.UUID       `json:"draft_id"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// New marshals payload into a fresh envelope.
func New(draftID uuid.UUID, typ Type, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return Event{
		ID:         uuid.New(),
		DraftID:    draftID,
		Type:       typ,
		OccurredAt: at.UTC(),
		Payload:    data,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Sink receives draft events after the state change has been persisted.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Emit(ctx context.Context, event Event) error { return f(ctx, event) }

// Fanout delivers each event to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })
