package draft_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/draftroom/go/internal/auth"
	"github.com/mcdev12/draftroom/go/internal/draft"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("service-test-secret")

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func newAPI(t *testing.T, h *harness) *apiClient {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(testSecret, false))
		draft.NewService(h.app).RegisterRoutes(r)
	})
	return &apiClient{t: t, handler: r}
}

func token(t *testing.T, id auth.Identity) string {
	t.Helper()
	tok, err := auth.Issue(testSecret, id, time.Hour)
	require.NoError(t, err)
	return tok
}

func (c *apiClient) do(method, path, tok string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestService_DraftFlow(t *testing.T) {
	h := newHarness(t, nil)
	api := newAPI(t, h)
	admin := token(t, auth.Identity{UserID: "commish", Admin: true})
	teamA := token(t, auth.Identity{UserID: "alice", Team: "A"})
	teamB := token(t, auth.Identity{UserID: "bob", Team: "B"})

	rec := api.do(http.MethodPost, "/api/drafts", teamA, draft.CreateDraftRequest{LeagueID: "l1", Rounds: 1, Teams: []string{"A", "B"}, ClockSeconds: 60})
	assert.Equal(t, http.StatusForbidden, rec.Code, "members cannot create drafts")

	rec = api.do(http.MethodPost, "/api/drafts", admin, draft.CreateDraftRequest{
		LeagueID: "l1", Year: 2025, Rounds: 2, Teams: []string{"A", "B"}, ClockSeconds: 60, Snake: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	d := decode[models.Draft](t, rec)
	base := "/api/drafts/" + d.ID.String()

	rec = api.do(http.MethodPost, base+"/picks", teamA, map[string]string{"player_id": "p1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE", decode[errorBody](t, rec).Code)

	rec = api.do(http.MethodPost, base+"/start", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.DraftStatusLive, decode[models.Draft](t, rec).Status)

	rec = api.do(http.MethodPost, base+"/picks", teamB, map[string]string{"player_id": "p1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "TURN_OWNERSHIP", decode[errorBody](t, rec).Code)

	rec = api.do(http.MethodPost, base+"/picks", teamB, map[string]string{"player_id": "p1", "team": "A"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "cannot pick for another team")

	rec = api.do(http.MethodPost, base+"/picks", teamA, map[string]string{"player_id": "p1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pick := decode[models.Pick](t, rec)
	assert.Equal(t, "A", pick.Team)
	assert.Equal(t, "alice", pick.MadeBy)

	rec = api.do(http.MethodPost, base+"/force-pick", admin, map[string]string{"player_id": "p1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PLAYER_UNAVAILABLE", decode[errorBody](t, rec).Code)

	rec = api.do(http.MethodPost, base+"/force-pick", admin, map[string]string{"player_id": "p2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.MadeByAdmin, decode[models.Pick](t, rec).MadeBy)

	rec = api.do(http.MethodGet, base+"/picks", teamB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Pick](t, rec), 2)

	rec = api.do(http.MethodDelete, base+"/picks/last", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[models.Draft](t, rec).CurOverall)

	rec = api.do(http.MethodGet, base, teamB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ov := decode[draft.Overview](t, rec)
	require.NotNil(t, ov.OnClock)
	assert.Equal(t, "B", ov.OnClock.Team)
	assert.Equal(t, 4, ov.TotalPicks)

	rec = api.do(http.MethodGet, "/api/leagues/l1/drafts/current", teamB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, d.ID, decode[draft.Overview](t, rec).Draft.ID)
}

func TestService_AdminPickDefaultsToTeamOnClock(t *testing.T) {
	h := newHarness(t, nil)
	api := newAPI(t, h)
	admin := token(t, auth.Identity{UserID: "commish", Admin: true})
	d := h.startNew(t, []string{"A", "B"}, 1, false)

	rec := api.do(http.MethodPost, "/api/drafts/"+d.ID.String()+"/picks", admin, map[string]string{"player_id": "p1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "A", decode[models.Pick](t, rec).Team)
}

func TestService_ClockPauseResume(t *testing.T) {
	h := newHarness(t, nil)
	api := newAPI(t, h)
	admin := token(t, auth.Identity{UserID: "commish", Admin: true})
	d := h.startNew(t, []string{"A", "B"}, 1, false)
	base := "/api/drafts/" + d.ID.String()

	rec := api.do(http.MethodPut, base+"/clock", admin, map[string]any{"seconds": 90, "apply_to_current": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 90, decode[models.Draft](t, rec).ClockSeconds)

	rec = api.do(http.MethodPost, base+"/pause", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	paused := decode[models.Draft](t, rec)
	assert.Equal(t, models.DraftStatusPaused, paused.Status)
	require.NotNil(t, paused.PausedRemainingMs)
	assert.Equal(t, int64(90_000), *paused.PausedRemainingMs)

	rec = api.do(http.MethodPost, base+"/pause", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, base+"/resume", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.DraftStatusLive, decode[models.Draft](t, rec).Status)

	rec = api.do(http.MethodPut, base+"/clock", admin, map[string]any{"seconds": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decode[errorBody](t, rec).Code)
}

func TestService_QueuesAndPool(t *testing.T) {
	h := newHarness(t, nil)
	api := newAPI(t, h)
	admin := token(t, auth.Identity{UserID: "commish", Admin: true})
	teamA := token(t, auth.Identity{UserID: "alice", Team: "A"})
	d := h.create(t, []string{"A", "B"}, 1, false)
	base := "/api/drafts/" + d.ID.String()

	rec := api.do(http.MethodPut, base+"/queues/A", teamA, map[string]any{"player_ids": []string{"p2", "p1"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, base+"/queues/A", teamA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"team":"A","player_ids":["p2","p1"]}`, rec.Body.String())

	rec = api.do(http.MethodGet, base+"/queues/B", teamA, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "other teams' queues are private")

	rec = api.do(http.MethodGet, base+"/queues/Z", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPut, base+"/pool", teamA, map[string]any{"players": []models.PoolPlayer{{PlayerID: "x"}}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPut, base+"/pool", admin, map[string]any{"players": []models.PoolPlayer{
		{PlayerID: "qb", Name: "Quarterback", Position: "QB", Rank: rank(2)},
		{PlayerID: "rb", Name: "Runner", Position: "RB", Rank: rank(1)},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"count":2,"custom_pool":true}`, rec.Body.String())

	rec = api.do(http.MethodGet, base+"/players?position=qb", teamA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	players := decode[[]models.PoolPlayer](t, rec)
	require.Len(t, players, 1)
	assert.Equal(t, "qb", players[0].PlayerID)

	rec = api.do(http.MethodGet, base+"/players?limit=-1", teamA, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodDelete, base+"/pool", admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestService_Errors(t *testing.T) {
	h := newHarness(t, nil)
	api := newAPI(t, h)
	admin := token(t, auth.Identity{UserID: "commish", Admin: true})

	rec := api.do(http.MethodGet, "/api/drafts/not-a-uuid", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/drafts/00000000-0000-0000-0000-000000000001", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, rec).Code)

	rec = api.do(http.MethodGet, "/api/drafts/00000000-0000-0000-0000-000000000001", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	d := h.startNew(t, []string{"A", "B"}, 1, false)
	rec = api.do(http.MethodDelete, "/api/drafts/"+d.ID.String()+"/picks/last", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMPTY_HISTORY", decode[errorBody](t, rec).Code)

	rec = api.do(http.MethodPost, "/api/drafts", admin, map[string]any{"rounds": 1, "surprise": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{models.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{models.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
		{models.ErrTurnOwnership, http.StatusForbidden, "TURN_OWNERSHIP"},
		{models.ErrPlayerUnavailable, http.StatusConflict, "PLAYER_UNAVAILABLE"},
		{models.ErrEmptyHistory, http.StatusConflict, "EMPTY_HISTORY"},
		{models.ErrStaleDraft, http.StatusConflict, "STALE_DRAFT"},
		{models.ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
		{assert.AnError, http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		status, code := draft.StatusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code)
	}
}
