package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/draftroom/go/internal/draft/outbox/worker"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConsumerConfig struct {
	worker.ConnConfig
	StreamName    string
	SubjectFilter string // e.g. "draft.events.>"
}

func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		ConnConfig: worker.ConnConfig{
			URL:           nats.DefaultURL,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		StreamName:    "DRAFT_EVENTS",
		SubjectFilter: "draft.events.>",
	}
}

// EventConsumer feeds the connection manager from the event stream, so sockets on every
// instance see events produced by any instance. Each instance reads through its own ordered
// consumer starting at new messages.
type EventConsumer struct {
	cm     *ConnectionManager
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConsumerConfig
}

func NewEventConsumer(cm *ConnectionManager, config JetStreamConsumerConfig) (*EventConsumer, error) {
	nc, js, err := worker.Connect("draftroom-gateway", config.ConnConfig)
	if err != nil {
		return nil, err
	}
	return &EventConsumer{cm: cm, nc: nc, js: js, config: config}, nil
}

// Run consumes until ctx is cancelled.
func (ec *EventConsumer) Run(ctx context.Context) error {
	consumer, err := ec.js.OrderedConsumer(ctx, ec.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{ec.config.SubjectFilter},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create ordered consumer on %s: %w", ec.config.StreamName, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		ev, err := worker.DecodeEnvelope(msg.Data())
		if err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping undecodable stream message")
			return
		}
		_ = ec.cm.Emit(ctx, ev)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	log.Info().
		Str("stream", ec.config.StreamName).
		Str("filter", ec.config.SubjectFilter).
		Msg("gateway consuming draft events")

	<-ctx.Done()
	cc.Stop()
	return ec.Stop()
}

func (ec *EventConsumer) Stop() error {
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
