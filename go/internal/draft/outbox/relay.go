package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

type RelayConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int32 // Max events to fetch per batch
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		NotifyChannel:    "draft_outbox_events",
		FallbackInterval: 10 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Publisher delivers a relayed event to the message bus.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Store is the outbox table as seen by the relay.
type Store interface {
	FetchOutboxByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error)
	FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id uuid.UUID) error
}

// Notifier is the part of *pq.Listener the relay uses.
type Notifier interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Relay moves outbox rows to the publisher. NOTIFY wakes it per row; the fallback ticker
// picks up anything missed while disconnected.
type Relay struct {
	store     Store
	notifier  Notifier
	publisher Publisher
	cfg       RelayConfig

	// serializes notification and fallback handling of the same row
	mu    sync.Mutex
	stats relayStats
}

func NewRelay(store Store, notifier Notifier, publisher Publisher, cfg RelayConfig) *Relay {
	return &Relay{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Listen opens a pq.Listener on the configured channel.
func Listen(cfg RelayConfig) (*pq.Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")
	return l, nil
}

// Run relays until ctx is cancelled, then closes the notifier.
func (r *Relay) Run(ctx context.Context) error {
	log.Info().
		Str("channel", r.cfg.NotifyChannel).
		Dur("ping_interval", r.cfg.PingInterval).
		Dur("fallback_interval", r.cfg.FallbackInterval).
		Msg("outbox relay started")

	pingTicker := time.NewTicker(r.cfg.PingInterval)
	fallbackTicker := time.NewTicker(r.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	// rows written before startup
	if err := r.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}

	notes := r.notifier.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox relay shutting down")
			return r.notifier.Close()
		case note := <-notes:
			if note == nil {
				// connection was re-established; NOTIFYs may have been lost
				if err := r.processUnsent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to process unsent events after reconnect")
				}
				continue
			}
			if err := r.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			if err := r.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pingTicker.C:
			if err := r.notifier.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// handleNotification relays the row whose id is the notification payload.
func (r *Relay) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	row, err := r.store.FetchOutboxByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		log.Debug().Str("event_id", id.String()).Msg("outbox event already relayed")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	return r.relay(ctx, *row)
}

// processUnsent relays a batch of unsent rows in creation order.
func (r *Relay) processUnsent(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	unsent, err := r.store.FetchUnsentOutbox(ctx, r.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	r.stats.setPending(len(unsent))

	for _, row := range unsent {
		if err := r.relay(ctx, row); err != nil {
			log.Error().Err(err).Str("event_id", row.ID.String()).Msg("failed to relay event")
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	return nil
}

func (r *Relay) relay(ctx context.Context, row OutboxEvent) error {
	if err := r.publishWithRetry(ctx, row.Event()); err != nil {
		r.stats.failed()
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := r.store.MarkOutboxSent(ctx, row.ID); err != nil {
		return err
	}
	r.stats.processed(time.Now())
	log.Debug().Str("event_id", row.ID.String()).Str("event_type", row.EventType).Msg("published and marked event as sent")
	return nil
}

// publishWithRetry backs off linearly between attempts.
func (r *Relay) publishWithRetry(ctx context.Context, event events.Event) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := r.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
