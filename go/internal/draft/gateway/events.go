package gateway

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

// TypeSnapshot is sent once per connection, before any live event.
const TypeSnapshot events.Type = "Snapshot"

// Message is the frame written to websocket clients.
type Message struct {
	ID        string          `json:"id,omitempty"`
	DraftID   string          `json:"draft_id"`
	Type      events.Type     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func messageFromEvent(ev events.Event) Message {
	return Message{
		ID:        ev.ID.String(),
		DraftID:   ev.DraftID.String(),
		Type:      ev.Type,
		Timestamp: ev.OccurredAt,
		Data:      ev.Payload,
	}
}
