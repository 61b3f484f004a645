package outbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu   sync.Mutex
	rows []OutboxEvent
	sent map[uuid.UUID]int
}

func newFakeStore(rows ...OutboxEvent) *fakeStore {
	return &fakeStore{rows: rows, sent: map[uuid.UUID]int{}}
}

func (s *fakeStore) FetchOutboxByID(_ context.Context, id uuid.UUID) (*OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.ID == id && s.sent[id] == 0 {
			row := r
			return &row, nil
		}
	}
	return nil, fmt.Errorf("outbox event %s: %w", id, models.ErrNotFound)
}

func (s *fakeStore) FetchUnsentOutbox(_ context.Context, limit int32) ([]OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OutboxEvent
	for _, r := range s.rows {
		if s.sent[r.ID] == 0 && int32(len(out)) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkOutboxSent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[id]++
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	published []events.Event
	connected bool
}

func (p *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failFirst {
		return errors.New("bus unavailable")
	}
	p.published = append(p.published, ev)
	return nil
}

func (p *fakePublisher) Connected() bool { return p.connected }

type fakeNotifier struct {
	ch     chan *pq.Notification
	closed bool
}

func (n *fakeNotifier) NotificationChannel() <-chan *pq.Notification { return n.ch }
func (n *fakeNotifier) Ping() error                                   { return nil }
func (n *fakeNotifier) Close() error                                  { n.closed = true; return nil }

func row(typ events.Type) OutboxEvent {
	return OutboxEvent{
		ID:        uuid.New(),
		DraftID:   uuid.New(),
		EventType: string(typ),
		Payload:   []byte(`{"team":"A"}`),
		CreatedAt: time.Date(2025, 9, 1, 18, 0, 0, 0, time.UTC),
	}
}

func testConfig() RelayConfig {
	cfg := DefaultRelayConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRetries = 2
	return cfg
}

func TestRelay_HandleNotificationPublishesOnce(t *testing.T) {
	r1 := row(events.TypePickMade)
	store := newFakeStore(r1)
	pub := &fakePublisher{connected: true}
	relay := NewRelay(store, &fakeNotifier{}, pub, testConfig())
	ctx := context.Background()

	require.NoError(t, relay.handleNotification(ctx, r1.ID.String()))
	require.NoError(t, relay.handleNotification(ctx, r1.ID.String()), "already sent rows are skipped")

	require.Len(t, pub.published, 1)
	assert.Equal(t, r1.ID, pub.published[0].ID)
	assert.Equal(t, events.TypePickMade, pub.published[0].Type)
	assert.Equal(t, 1, store.sent[r1.ID])

	assert.Error(t, relay.handleNotification(ctx, "not-a-uuid"))
}

func TestRelay_RetriesThenGivesUp(t *testing.T) {
	r1 := row(events.TypeDraftStarted)
	store := newFakeStore(r1)
	ctx := context.Background()

	pub := &fakePublisher{failFirst: 2}
	relay := NewRelay(store, &fakeNotifier{}, pub, testConfig())
	require.NoError(t, relay.handleNotification(ctx, r1.ID.String()))
	assert.Equal(t, 3, pub.calls)
	assert.Equal(t, 1, store.sent[r1.ID])

	r2 := row(events.TypeDraftPaused)
	store = newFakeStore(r2)
	pub = &fakePublisher{failFirst: 10}
	relay = NewRelay(store, &fakeNotifier{}, pub, testConfig())
	err := relay.handleNotification(ctx, r2.ID.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish failed after 3 attempts")
	assert.Zero(t, store.sent[r2.ID], "unpublished rows stay unsent")
	assert.Equal(t, uint64(1), relay.Health().PublishFailures)
}

func TestRelay_ProcessUnsentInOrder(t *testing.T) {
	rows := []OutboxEvent{row(events.TypeDraftStarted), row(events.TypePickStarted), row(events.TypePickMade)}
	store := newFakeStore(rows...)
	pub := &fakePublisher{connected: true}
	relay := NewRelay(store, &fakeNotifier{}, pub, testConfig())

	require.NoError(t, relay.processUnsent(context.Background()))
	require.Len(t, pub.published, 3)
	for i, ev := range pub.published {
		assert.Equal(t, rows[i].ID, ev.ID)
	}

	h := relay.Health()
	assert.True(t, h.Healthy)
	assert.Equal(t, uint64(3), h.EventsPublished)
	assert.Equal(t, 0, h.PendingEvents)
}

func TestRelay_RunDrainsBacklogAndStops(t *testing.T) {
	backlog := row(events.TypeDraftCreated)
	store := newFakeStore(backlog)
	pub := &fakePublisher{connected: true}
	notifier := &fakeNotifier{ch: make(chan *pq.Notification, 1)}
	relay := NewRelay(store, notifier, pub, testConfig())

	live := row(events.TypePickMade)
	store.mu.Lock()
	store.rows = append(store.rows, live)
	store.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	notifier.ch <- &pq.Notification{Extra: live.ID.String()}
	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.published) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, notifier.closed)
}

func TestRelay_HealthHandler(t *testing.T) {
	relay := NewRelay(newFakeStore(), &fakeNotifier{}, &fakePublisher{connected: false}, testConfig())

	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/outbox", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "message bus disconnected")
}
