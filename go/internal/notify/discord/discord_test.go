package discord

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Discord session ---

type executed struct {
	webhookID string
	token     string
	params    *discordgo.WebhookParams
}

type mockSession struct {
	mu       sync.Mutex
	calls    []executed
	failures []error // returned in order before succeeding
}

func (m *mockSession) WebhookExecute(webhookID, token string, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, executed{webhookID: webhookID, token: token, params: data})
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return nil, err
	}
	return &discordgo.Message{ID: "msg"}, nil
}

func (m *mockSession) executed() []executed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]executed(nil), m.calls...)
}

const hookURL = "https://discord.com/api/webhooks/123456/secret-token"

func newTestSink(t *testing.T, sess *mockSession) *Sink {
	t.Helper()
	s, err := New(Opts{WebhookURL: hookURL, Session: sess, BaseBackoff: time.Millisecond})
	require.NoError(t, err)
	return s
}

func event(t *testing.T, typ events.Type, payload any) events.Event {
	t.Helper()
	ev, err := events.New(uuid.New(), typ, time.Date(2025, 9, 1, 18, 0, 0, 0, time.UTC), payload)
	require.NoError(t, err)
	return ev
}

func rateLimited() error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
}

func TestParseWebhookURL(t *testing.T) {
	id, token, err := ParseWebhookURL(hookURL)
	require.NoError(t, err)
	assert.Equal(t, "123456", id)
	assert.Equal(t, "secret-token", token)

	_, _, err = ParseWebhookURL("https://discord.com/api/channels/1")
	assert.Error(t, err)
	_, err = New(Opts{WebhookURL: "", Session: &mockSession{}})
	assert.Error(t, err)
}

func TestPost_PickMade(t *testing.T) {
	sess := &mockSession{}
	s := newTestSink(t, sess)

	err := s.Post(context.Background(), event(t, events.TypePickMade, events.PickMadePayload{
		Team: "A", PlayerID: "4034", PlayerName: "Christian McCaffrey", Round: 1, OverallPick: 1, MadeBy: models.MadeByAutopick,
	}))
	require.NoError(t, err)

	calls := sess.executed()
	require.Len(t, calls, 1)
	assert.Equal(t, "123456", calls[0].webhookID)
	assert.Equal(t, "secret-token", calls[0].token)
	assert.Equal(t, "Draft Room", calls[0].params.Username)
	require.Len(t, calls[0].params.Embeds, 1)
	embed := calls[0].params.Embeds[0]
	assert.Equal(t, "Pick 1 (round 1)", embed.Title)
	assert.Contains(t, embed.Description, "Christian McCaffrey")
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "2025-09-01T18:00:00Z", embed.Timestamp)
}

func TestPost_StatusEvents(t *testing.T) {
	sess := &mockSession{}
	s := newTestSink(t, sess)
	ctx := context.Background()

	require.NoError(t, s.Post(ctx, event(t, events.TypeDraftStarted, events.DraftStartedPayload{TotalRounds: 2, TotalPicks: 8})))
	require.NoError(t, s.Post(ctx, event(t, events.TypeDraftPaused, events.DraftPausedPayload{RemainingMs: 42_500, Reason: "autopick exhausted"})))
	require.NoError(t, s.Post(ctx, event(t, events.TypeDraftResumed, events.DraftResumedPayload{})))
	require.NoError(t, s.Post(ctx, event(t, events.TypeDraftCompleted, events.DraftCompletedPayload{TotalPicks: 8, Duration: "12m0s"})))
	require.NoError(t, s.Post(ctx, event(t, events.TypeQueueUpdated, events.QueueUpdatedPayload{Team: "A"})))

	calls := sess.executed()
	require.Len(t, calls, 4, "queue updates are not announced")
	assert.Equal(t, "2 rounds, 8 picks. Good luck!", calls[0].params.Embeds[0].Description)
	assert.Equal(t, "autopick exhausted, 42s left on the clock", calls[1].params.Embeds[0].Description)
	assert.Equal(t, "Draft resumed", calls[2].params.Embeds[0].Title)
	assert.Equal(t, "8 picks in 12m0s", calls[3].params.Embeds[0].Description)
}

func TestPost_RetriesRateLimit(t *testing.T) {
	sess := &mockSession{failures: []error{rateLimited(), rateLimited()}}
	s := newTestSink(t, sess)

	require.NoError(t, s.Post(context.Background(), event(t, events.TypeDraftResumed, events.DraftResumedPayload{})))
	assert.Len(t, sess.executed(), 3)
}

func TestPost_GivesUp(t *testing.T) {
	sess := &mockSession{failures: []error{rateLimited(), rateLimited(), rateLimited(), rateLimited()}}
	s := newTestSink(t, sess)

	err := s.Post(context.Background(), event(t, events.TypeDraftResumed, events.DraftResumedPayload{}))
	require.Error(t, err)
	assert.Len(t, sess.executed(), maxRetries+1)

	sess = &mockSession{failures: []error{assert.AnError}}
	s = newTestSink(t, sess)
	err = s.Post(context.Background(), event(t, events.TypeDraftResumed, events.DraftResumedPayload{}))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, sess.executed(), 1, "other errors are not retried")
}

func TestEmitAndRun(t *testing.T) {
	sess := &mockSession{}
	s := newTestSink(t, sess)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.NoError(t, s.Emit(ctx, event(t, events.TypePoolUpdated, events.PoolUpdatedPayload{Count: 3})))
	require.NoError(t, s.Emit(ctx, event(t, events.TypeDraftStarted, events.DraftStartedPayload{TotalRounds: 1, TotalPicks: 2})))

	require.Eventually(t, func() bool { return len(sess.executed()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestEmit_FullQueue(t *testing.T) {
	s := newTestSink(t, &mockSession{})
	ev := event(t, events.TypeDraftResumed, events.DraftResumedPayload{})
	for i := 0; i < queueSize; i++ {
		require.NoError(t, s.Emit(context.Background(), ev))
	}
	assert.Error(t, s.Emit(context.Background(), ev))
}
