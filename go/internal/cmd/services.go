package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/draftroom/go/clients/sleeper_client"
	"github.com/mcdev12/draftroom/go/internal/config"
	"github.com/mcdev12/draftroom/go/internal/draft"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/gateway"
	"github.com/mcdev12/draftroom/go/internal/draft/memstore"
	"github.com/mcdev12/draftroom/go/internal/draft/orchestrator"
	"github.com/mcdev12/draftroom/go/internal/draft/outbox"
	"github.com/mcdev12/draftroom/go/internal/draft/outbox/worker"
	"github.com/mcdev12/draftroom/go/internal/draft/repository"
	"github.com/mcdev12/draftroom/go/internal/notify/discord"
	"github.com/rs/zerolog/log"
)

type Services struct {
	App         *draft.App
	Draft       *draft.Service
	Connections *gateway.ConnectionManager
	WebSocket   *gateway.WebSocketHandler

	// optional, nil when disabled by config
	Scheduler *orchestrator.Scheduler
	Relay     *outbox.Relay
	Consumer  *gateway.EventConsumer
	Discord   *discord.Sink

	closers []func() error
}

// Close releases connections opened during setup, newest first.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Warn().Err(err).Msg("error during shutdown")
		}
	}
}

type draftStore interface {
	draft.DraftRepository
	draft.QueueRepository
	draft.PoolRepository
}

func setupServices(ctx context.Context, cfg *config.Config) (svc *Services, err error) {
	// Wire up dependency injection chain
	// Storage → App (+ event sinks) → Service / gateway / background workers
	s := &Services{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	var (
		store    draftStore
		database *sql.DB
	)
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		database, err = setupDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, database.Close)
		var opts []repository.Option
		if cfg.Outbox.Enabled {
			opts = append(opts, repository.WithOutbox())
		}
		store = repository.NewRepository(database, opts...)
	default:
		store = memstore.New()
	}

	s.Connections = gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	// Post-commit sinks. With the outbox on, the repository stores events in the
	// same transaction as each write and sockets are fed from the stream, so every
	// instance sees every event.
	var sinks events.Fanout
	if cfg.Outbox.Enabled {
		if err := s.setupOutbox(ctx, cfg, database); err != nil {
			return nil, err
		}
	} else {
		sinks = append(sinks, s.Connections)
	}
	if cfg.Discord.WebhookURL != "" {
		s.Discord, err = discord.New(discord.Opts{WebhookURL: cfg.Discord.WebhookURL})
		if err != nil {
			return nil, fmt.Errorf("failed to set up discord notifications: %w", err)
		}
		sinks = append(sinks, s.Discord)
	}

	var catalog draft.PlayerCatalog
	if cfg.Sleeper.Enabled {
		client := sleeper_client.NewClient(cfg.Sleeper.BaseURL, cfg.Sleeper.Timeout)
		catalog = sleeper_client.NewCatalog(client, cfg.Sleeper.CatalogTTL, nil)
	}

	s.App = draft.NewApp(store, store, store, catalog,
		draft.WithSink(sinks),
		draft.WithDraftablePositions(cfg.Draft.DraftablePositions),
		draft.WithOverviewLimits(cfg.Draft.RecentPicks, cfg.Draft.UpcomingSlots),
		draft.WithDeadlineHook(func() {
			if s.Scheduler != nil {
				s.Scheduler.Wake()
			}
		}),
	)
	if cfg.Draft.Scheduler.Enabled {
		s.Scheduler = orchestrator.NewScheduler(s.App, nil, orchestrator.Config{
			BatchSize: cfg.Draft.Scheduler.BatchSize,
			Workers:   cfg.Draft.Scheduler.Workers,
			MaxSleep:  cfg.Draft.Scheduler.MaxSleep,
		})
	}

	s.Draft = draft.NewService(s.App)
	s.WebSocket = gateway.NewWebSocketHandler(s.Connections, s.App, identify)

	log.Info().
		Str("storage", cfg.Storage.Driver).
		Bool("scheduler", s.Scheduler != nil).
		Bool("outbox", s.Relay != nil).
		Bool("sleeper_catalog", catalog != nil).
		Bool("discord", s.Discord != nil).
		Msg("services configured")
	return s, nil
}

// setupOutbox connects the relay (LISTEN → JetStream) and the gateway's stream consumer.
func (s *Services) setupOutbox(ctx context.Context, cfg *config.Config, database *sql.DB) error {
	relayCfg := outbox.DefaultRelayConfig()
	relayCfg.DatabaseURL = cfg.Database.DSN()
	relayCfg.NotifyChannel = cfg.Outbox.Channel
	relayCfg.FallbackInterval = cfg.Outbox.FallbackInterval
	relayCfg.PingInterval = cfg.Outbox.PingInterval
	relayCfg.BatchSize = cfg.Outbox.BatchSize

	jsCfg := worker.DefaultJetStreamConfig()
	jsCfg.URL = cfg.NATS.URL
	jsCfg.StreamName = cfg.NATS.Stream

	publisher, err := worker.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		return fmt.Errorf("failed to create JetStream publisher: %w", err)
	}
	s.closers = append(s.closers, publisher.Close)

	listener, err := outbox.Listen(relayCfg)
	if err != nil {
		return err
	}
	s.Relay = outbox.NewRelay(outbox.NewRepository(database), listener, publisher, relayCfg)

	consumerCfg := gateway.DefaultJetStreamConsumerConfig()
	consumerCfg.URL = cfg.NATS.URL
	consumerCfg.StreamName = cfg.NATS.Stream
	consumerCfg.SubjectFilter = jsCfg.SubjectPrefix + ".>"
	s.Consumer, err = gateway.NewEventConsumer(s.Connections, consumerCfg)
	if err != nil {
		return fmt.Errorf("failed to create gateway consumer: %w", err)
	}
	return nil
}
