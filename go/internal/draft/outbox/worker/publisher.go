// Package worker publishes relayed draft events to NATS JetStream.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	ConnConfig
	StreamName      string
	SubjectPrefix   string
	MaxAge          time.Duration // retention per message
	MaxMsgs         int64         // -1 is unlimited
	Replicas        int
	DuplicateWindow time.Duration // Nats-Msg-Id dedupe horizon
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		ConnConfig: ConnConfig{
			URL:           nats.DefaultURL,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		StreamName:      "DRAFT_EVENTS",
		SubjectPrefix:   "draft.events",
		MaxAge:          7 * 24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// StreamConfig is the stream definition the publisher keeps in place.
func (c JetStreamConfig) StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        c.StreamName,
		Description: "Draft room events relayed from the outbox",
		Subjects:    []string{c.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      c.MaxAge,
		MaxMsgs:     c.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    c.Replicas,
		Duplicates:  c.DuplicateWindow,
	}
}

// JetStreamPublisher is the relay's Publisher.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// NewJetStreamPublisher connects and creates or updates the stream.
func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	nc, js, err := Connect("draftroom-outbox", cfg.ConnConfig)
	if err != nil {
		return nil, err
	}

	stream, err := js.CreateOrUpdateStream(ctx, cfg.StreamConfig())
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.StreamName, err)
	}
	log.Info().
		Str("stream", stream.CachedInfo().Config.Name).
		Strs("subjects", stream.CachedInfo().Config.Subjects).
		Msg("JetStream stream ready")

	return &JetStreamPublisher{nc: nc, js: js, config: cfg}, nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, ev events.Event) error {
	msg, err := NewMsg(p.config.SubjectPrefix, ev)
	if err != nil {
		return err
	}

	ack, err := p.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(ev.ID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Subject, err)
	}
	if ack.Duplicate {
		log.Debug().Str("event_id", ev.ID.String()).Msg("stream already had event")
	}
	return nil
}

// Connected reports whether the NATS connection is up.
func (p *JetStreamPublisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

func (p *JetStreamPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
