package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft"
	"github.com/mcdev12/draftroom/go/internal/draft/memstore"
	"github.com/mcdev12/draftroom/go/internal/draft/orchestrator"
	"github.com/mcdev12/draftroom/go/internal/draft/repository"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 9, 1, 18, 0, 0, 0, time.UTC)

func rank(n int) *int { return &n }

type fixture struct {
	app   *draft.App
	clock *clockwork.FakeClock
	sched *orchestrator.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: clockwork.NewFakeClockAt(epoch)}
	store := memstore.New()
	f.app = draft.NewApp(store, store, store, nil,
		draft.WithClock(f.clock),
		draft.WithDeadlineHook(func() { f.sched.Wake() }),
	)
	f.sched = orchestrator.NewScheduler(f.app, f.clock, orchestrator.Config{Workers: 2, MaxSleep: 5 * time.Minute})
	return f
}

func (f *fixture) liveDraft(t *testing.T, teams []string, pool []models.PoolPlayer) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	d, err := f.app.CreateDraft(ctx, draft.CreateDraftRequest{
		LeagueID:     "league-" + uuid.NewString()[:4],
		Year:         2025,
		Rounds:       1,
		Teams:        teams,
		ClockSeconds: 60,
	})
	require.NoError(t, err)
	_, err = f.app.SetPool(ctx, d.ID, pool)
	require.NoError(t, err)
	_, err = f.app.StartDraft(ctx, d.ID)
	require.NoError(t, err)
	return d.ID
}

func (f *fixture) run(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sched.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("scheduler did not stop")
		}
	})
	return ctx
}

func (f *fixture) picks(t *testing.T, id uuid.UUID) []models.Pick {
	t.Helper()
	picks, err := f.app.ListPicks(context.Background(), id)
	require.NoError(t, err)
	return picks
}

func TestScheduler_AutopicksWhenClockExpires(t *testing.T) {
	f := newFixture(t)
	id := f.liveDraft(t, []string{"A", "B"}, []models.PoolPlayer{
		{PlayerID: "x", Name: "X", Rank: rank(1)},
		{PlayerID: "y", Name: "Y", Rank: rank(2)},
	})
	ctx := f.run(t)

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	assert.Empty(t, f.picks(t, id), "deadline not reached yet")

	f.clock.Advance(31 * time.Second)
	require.Eventually(t, func() bool { return len(f.picks(t, id)) == 1 }, 2*time.Second, 10*time.Millisecond)
	first := f.picks(t, id)[0]
	assert.Equal(t, "A", first.Team)
	assert.Equal(t, "x", first.PlayerID)
	assert.Equal(t, models.MadeByAutopick, first.MadeBy)

	// the next slot's clock started at the autopick; let it run out too
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(61 * time.Second)
	require.Eventually(t, func() bool {
		d, err := f.app.GetDraft(context.Background(), id)
		return err == nil && d.Status == models.DraftStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "y", f.picks(t, id)[1].PlayerID)
}

func TestScheduler_WakesForNewDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := f.run(t)

	// idle with nothing live: parked on the long MaxSleep timer
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

	id := f.liveDraft(t, []string{"A", "B"}, []models.PoolPlayer{{PlayerID: "x", Name: "X"}, {PlayerID: "y", Name: "Y"}})
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

	f.clock.Advance(61 * time.Second)
	require.Eventually(t, func() bool { return len(f.picks(t, id)) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_ExhaustedPoolPausesInsteadOfFailing(t *testing.T) {
	f := newFixture(t)
	id := f.liveDraft(t, []string{"A", "B"}, []models.PoolPlayer{{PlayerID: "only", Name: "Only"}})
	_, err := f.app.MakePick(context.Background(), draft.MakePickRequest{DraftID: id, Team: "A", PlayerID: "only"})
	require.NoError(t, err)
	ctx := f.run(t)

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(61 * time.Second)
	require.Eventually(t, func() bool {
		d, err := f.app.GetDraft(context.Background(), id)
		return err == nil && d.Status == models.DraftStatusPaused
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, f.picks(t, id), 1)
}

type flakyApp struct {
	mu    sync.Mutex
	calls int
}

func (a *flakyApp) FetchNextDeadline(context.Context) (*repository.NextDeadline, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return nil, errors.New("connection refused")
}

func (a *flakyApp) FetchDraftsDueForPick(context.Context, int32) ([]uuid.UUID, error) {
	return nil, nil
}

func (a *flakyApp) CheckAndAutoPick(context.Context, uuid.UUID) (*models.Pick, error) {
	return nil, nil
}

func TestScheduler_GivesUpAfterRepeatedDeadlineErrors(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	app := &flakyApp{}
	sched := orchestrator.NewScheduler(app, clock, orchestrator.Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	for i := 1; i <= 3; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Duration(i) * time.Second)
	}

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	case <-ctx.Done():
		t.Fatal("scheduler kept retrying")
	}
	app.mu.Lock()
	defer app.mu.Unlock()
	assert.Equal(t, 4, app.calls)
}
