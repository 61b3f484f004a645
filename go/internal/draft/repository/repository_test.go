package repository_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft"
	"github.com/mcdev12/draftroom/go/internal/draft/db"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/repository"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"
)

var epoch = time.Date(2025, 9, 1, 18, 0, 0, 0, time.UTC)

func rank(n int) *int { return &n }

// openTestDB connects to DRAFTROOM_TEST_DSN and applies migrations, skipping the test when unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DRAFTROOM_TEST_DSN")
	if dsn == "" {
		t.Skip("DRAFTROOM_TEST_DSN not set")
	}
	conn, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = db.Migrate(context.Background(), conn)
	require.NoError(t, err)
	return conn
}

type pgHarness struct {
	conn  *sql.DB
	repo  *repository.Repository
	app   *draft.App
	clock *clockwork.FakeClock
}

func newPGHarness(t *testing.T) *pgHarness {
	conn := openTestDB(t)
	h := &pgHarness{
		conn:  conn,
		repo:  repository.NewRepository(conn, repository.WithOutbox()),
		clock: clockwork.NewFakeClockAt(epoch),
	}
	h.app = draft.NewApp(h.repo, h.repo, h.repo, nil, draft.WithClock(h.clock))
	return h
}

func (h *pgHarness) liveDraft(t *testing.T, teams []string, rounds int) *models.Draft {
	t.Helper()
	ctx := context.Background()
	d, err := h.app.CreateDraft(ctx, draft.CreateDraftRequest{
		LeagueID:     "pg-" + uuid.NewString(),
		Year:         2025,
		Rounds:       rounds,
		Teams:        teams,
		ClockSeconds: 60,
		Snake:        true,
	})
	require.NoError(t, err)
	_, err = h.app.SetPool(ctx, d.ID, []models.PoolPlayer{
		{PlayerID: "p1", Name: "One", Position: "QB", Rank: rank(1)},
		{PlayerID: "p2", Name: "Two", Position: "RB", Rank: rank(2)},
		{PlayerID: "p3", Name: "Three", Position: "WR", Rank: rank(3)},
		{PlayerID: "p4", Name: "Four", Position: "TE"},
	})
	require.NoError(t, err)
	d, err = h.app.StartDraft(ctx, d.ID)
	require.NoError(t, err)
	return d
}

func TestRepository_SlotsFollowSnakeOrder(t *testing.T) {
	h := newPGHarness(t)
	d := h.liveDraft(t, []string{"A", "B", "C", "D"}, 2)

	slots, err := h.repo.ListSlots(context.Background(), d.ID, 1, 0)
	require.NoError(t, err)
	got := make([]string, len(slots))
	for i, s := range slots {
		got[i] = s.Team
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "D", "C", "B", "A"}, got)
	assert.Equal(t, 8, slots[7].Overall)
	assert.Equal(t, 2, slots[7].Round)
}

func TestRepository_PickUndoRoundTrip(t *testing.T) {
	h := newPGHarness(t)
	ctx := context.Background()
	d := h.liveDraft(t, []string{"A", "B"}, 1)

	name := "One"
	_, err := h.app.MakePick(ctx, draft.MakePickRequest{DraftID: d.ID, Team: "A", PlayerID: "p1", PlayerName: &name, MadeBy: "alice"})
	require.NoError(t, err)

	stored, err := h.repo.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurOverall)
	require.NotNil(t, stored.OnClockTeam)
	assert.Equal(t, "B", *stored.OnClockTeam)

	_, err = h.app.ForcePick(ctx, draft.ForcePickRequest{DraftID: d.ID, PlayerID: "p1", MadeBy: models.MadeByAdmin})
	assert.ErrorIs(t, err, models.ErrPlayerUnavailable)

	_, err = h.app.UndoLastPick(ctx, d.ID)
	require.NoError(t, err)
	picks, err := h.repo.ListPicks(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, picks)

	_, err = h.app.MakePick(ctx, draft.MakePickRequest{DraftID: d.ID, Team: "A", PlayerID: "p1", PlayerName: &name, MadeBy: "alice"})
	require.NoError(t, err)
	picks, err = h.repo.ListPicks(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "p1", picks[0].PlayerID)
	assert.Equal(t, "alice", picks[0].MadeBy)
	require.NotNil(t, picks[0].PlayerName)
	assert.Equal(t, "One", *picks[0].PlayerName)
}

func TestRepository_ApplyPickRejectsStaleVersion(t *testing.T) {
	h := newPGHarness(t)
	ctx := context.Background()
	d := h.liveDraft(t, []string{"A", "B"}, 1)
	before := outboxTypes(t, h.conn, d.ID)

	// d is the stored row, so writing it again skips no version.
	next := d.Clone()
	next.CurOverall = 1
	err := h.repo.ApplyPick(ctx, repository.ApplyPickRequest{
		Pick: models.Pick{
			DraftID: d.ID, Overall: 1, Round: 1, Team: "A",
			PlayerID: "p2", MadeBy: "alice", MadeAt: epoch,
		},
		Draft: next,
		Events: []events.Event{
			{ID: uuid.New(), DraftID: d.ID, Type: events.TypePickMade, OccurredAt: epoch},
		},
	})
	assert.ErrorIs(t, err, models.ErrStaleDraft)

	picks, err := h.repo.ListPicks(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, picks, "nothing written when the guard fails")
	assert.Equal(t, before, outboxTypes(t, h.conn, d.ID), "no outbox row for a rejected write")

	missing := d.Next(epoch)
	missing.ID = uuid.New()
	assert.ErrorIs(t, h.repo.UpdateDraftState(ctx, missing, nil), models.ErrNotFound)
}

// pausedBetween runs afterRead once, right after the next GetDraft returns.
type pausedBetween struct {
	*repository.Repository
	afterRead func()
}

func (r *pausedBetween) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	d, err := r.Repository.GetDraft(ctx, id)
	if hook := r.afterRead; hook != nil {
		r.afterRead = nil
		hook()
	}
	return d, err
}

func TestRepository_PauseBetweenReadAndPick(t *testing.T) {
	h := newPGHarness(t)
	ctx := context.Background()
	d := h.liveDraft(t, []string{"A", "B"}, 2)

	// A second instance over the same database, with its own locks.
	wrapped := &pausedBetween{Repository: h.repo}
	other := draft.NewApp(wrapped, h.repo, h.repo, nil, draft.WithClock(h.clock))
	wrapped.afterRead = func() {
		_, err := h.app.PauseDraft(ctx, d.ID)
		require.NoError(t, err)
		_, err = h.app.SetClockSeconds(ctx, d.ID, 300, false)
		require.NoError(t, err)
	}

	_, err := other.MakePick(ctx, draft.MakePickRequest{DraftID: d.ID, Team: "A", PlayerID: "p1", MadeBy: "alice"})
	assert.ErrorIs(t, err, models.ErrStaleDraft)

	stored, err := h.repo.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusPaused, stored.Status)
	assert.Equal(t, 300, stored.ClockSeconds)
	assert.Equal(t, 0, stored.CurOverall)
	assert.Equal(t, d.Version+2, stored.Version)

	picks, err := h.repo.ListPicks(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, picks)
	assert.NotContains(t, outboxTypes(t, h.conn, d.ID), string(events.TypePickMade))
}

func TestRepository_OutboxCommitsWithState(t *testing.T) {
	h := newPGHarness(t)
	ctx := context.Background()
	d := h.liveDraft(t, []string{"A", "B"}, 1)

	_, err := h.app.MakePick(ctx, draft.MakePickRequest{DraftID: d.ID, Team: "A", PlayerID: "p1", MadeBy: "alice"})
	require.NoError(t, err)
	_, err = h.app.UndoLastPick(ctx, d.ID)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		string(events.TypeDraftCreated),
		string(events.TypePoolUpdated),
		string(events.TypeDraftStarted),
		string(events.TypePickStarted),
		string(events.TypePickMade),
		string(events.TypePickStarted),
		string(events.TypePickUndone),
		string(events.TypePickStarted),
	}, outboxTypes(t, h.conn, d.ID))

	plain := repository.NewRepository(h.conn)
	stored, err := plain.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	err = plain.UpdateDraftState(ctx, stored.Next(epoch), []events.Event{
		{ID: uuid.New(), DraftID: d.ID, Type: events.TypeClockChanged, OccurredAt: epoch},
	})
	require.NoError(t, err)
	assert.NotContains(t, outboxTypes(t, h.conn, d.ID), string(events.TypeClockChanged), "outbox disabled")
}

func outboxTypes(t *testing.T, conn *sql.DB, draftID uuid.UUID) []string {
	t.Helper()
	rows, err := conn.QueryContext(context.Background(), `SELECT event_type FROM draft_outbox WHERE draft_id = $1`, draftID)
	require.NoError(t, err)
	defer rows.Close()
	var out []string
	for rows.Next() {
		var typ string
		require.NoError(t, rows.Scan(&typ))
		out = append(out, typ)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestRepository_QueuesAndPool(t *testing.T) {
	h := newPGHarness(t)
	ctx := context.Background()
	d := h.liveDraft(t, []string{"A", "B"}, 2)

	q, err := h.repo.GetTeamQueue(ctx, d.ID, "B")
	require.NoError(t, err)
	assert.Empty(t, q)

	require.NoError(t, h.repo.SetTeamQueue(ctx, repository.SetQueueRequest{
		DraftID:   d.ID,
		Team:      "B",
		PlayerIDs: []string{"p3", "p2"},
		UpdatedAt: epoch,
	}))
	q, err = h.repo.GetTeamQueue(ctx, d.ID, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p2"}, q)

	// B's pick drops the player from B's queue in the same transaction
	_, err = h.app.ForcePick(ctx, draft.ForcePickRequest{DraftID: d.ID, PlayerID: "p4", MadeBy: models.MadeByAdmin})
	require.NoError(t, err)
	_, err = h.app.MakePick(ctx, draft.MakePickRequest{DraftID: d.ID, Team: "B", PlayerID: "p3", MadeBy: "bob"})
	require.NoError(t, err)
	q, err = h.repo.GetTeamQueue(ctx, d.ID, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, q)

	pool, err := h.repo.ListPool(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, pool, 4)
	byID := map[string]models.PoolPlayer{}
	for _, p := range pool {
		byID[p.PlayerID] = p
	}
	assert.Nil(t, byID["p4"].Rank, "unranked survives the round trip")
	require.NotNil(t, byID["p2"].Rank)
	assert.Equal(t, 2, *byID["p2"].Rank)

	n, err := h.repo.CountPool(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, h.repo.ReplacePool(ctx, d.ID, nil, nil))
	n, err = h.repo.CountPool(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepository_DeadlineQueries(t *testing.T) {
	h := newPGHarness(t)
	ctx := context.Background()
	d := h.liveDraft(t, []string{"A", "B"}, 1)

	due, err := h.repo.FetchDraftsDueForPick(ctx, epoch.Add(30*time.Second), 1000)
	require.NoError(t, err)
	assert.NotContains(t, due, d.ID)

	due, err = h.repo.FetchDraftsDueForPick(ctx, epoch.Add(61*time.Second), 1000)
	require.NoError(t, err)
	assert.Contains(t, due, d.ID)

	_, err = h.app.PauseDraft(ctx, d.ID)
	require.NoError(t, err)
	due, err = h.repo.FetchDraftsDueForPick(ctx, epoch.Add(61*time.Second), 1000)
	require.NoError(t, err)
	assert.NotContains(t, due, d.ID, "paused drafts have no deadline")

	id, err := h.repo.GetActiveOrLatestDraftID(ctx, d.LeagueID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, id)

	_, err = h.repo.GetActiveOrLatestDraftID(ctx, "pg-missing-"+uuid.NewString())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
