package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// ConnConfig is the NATS connection part shared by the publisher and stream consumers.
type ConnConfig struct {
	URL           string
	MaxReconnects int // -1 retries forever
	ReconnectWait time.Duration
}

// Connect dials NATS with logging handlers and opens a JetStream context on the connection.
func Connect(name string, cfg ConnConfig) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Str("client", name).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("client", name).Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Str("client", name).Msg("NATS async error")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to open JetStream: %w", err)
	}
	return nc, js, nil
}

// Envelope is the message body written to the stream.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	DraftID   string          `json:"draftId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Subject is the stream subject for an event type.
func Subject(prefix string, typ events.Type) string {
	return prefix + "." + string(typ)
}

// NewMsg builds the JetStream message for ev. The Event-ID header doubles as the dedupe key.
func NewMsg(prefix string, ev events.Event) (*nats.Msg, error) {
	data, err := json.Marshal(Envelope{
		EventID:   ev.ID.String(),
		EventType: string(ev.Type),
		DraftID:   ev.DraftID.String(),
		Timestamp: ev.OccurredAt,
		Payload:   ev.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", ev.ID, err)
	}

	msg := nats.NewMsg(Subject(prefix, ev.Type))
	msg.Data = data
	msg.Header.Set("Event-Type", string(ev.Type))
	msg.Header.Set("Draft-ID", ev.DraftID.String())
	msg.Header.Set("Event-ID", ev.ID.String())
	return msg, nil
}

// DecodeEnvelope turns a stream message body back into an event.
func DecodeEnvelope(data []byte) (events.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.Event{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	draftID, err := uuid.Parse(env.DraftID)
	if err != nil {
		return events.Event{}, fmt.Errorf("bad draft id %q: %w", env.DraftID, err)
	}
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return events.Event{}, fmt.Errorf("bad event id %q: %w", env.EventID, err)
	}
	return events.Event{
		ID:         id,
		DraftID:    draftID,
		Type:       events.Type(env.EventType),
		OccurredAt: env.Timestamp,
		Payload:    env.Payload,
	}, nil
}
