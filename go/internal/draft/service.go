package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/auth"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DraftApp defines what the service layer needs from the draft application
type DraftApp interface {
	CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.Draft, error)
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	StartDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	PauseDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	ResumeDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	SetClockSeconds(ctx context.Context, id uuid.UUID, seconds int, applyToCurrent bool) (*models.Draft, error)
	MakePick(ctx context.Context, req MakePickRequest) (*models.Pick, error)
	ForcePick(ctx context.Context, req ForcePickRequest) (*models.Pick, error)
	UndoLastPick(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	ListPicks(ctx context.Context, id uuid.UUID) ([]models.Pick, error)
	ListAvailablePlayers(ctx context.Context, id uuid.UUID, position string, limit int) ([]models.PoolPlayer, error)
	SetPool(ctx context.Context, id uuid.UUID, players []models.PoolPlayer) (int, error)
	ClearPool(ctx context.Context, id uuid.UUID) error
	SetTeamQueue(ctx context.Context, id uuid.UUID, team string, playerIDs []string) ([]string, error)
	GetTeamQueue(ctx context.Context, id uuid.UUID, team string) ([]string, error)
	GetOverview(ctx context.Context, id uuid.UUID) (*Overview, error)
	GetCurrentOverview(ctx context.Context, leagueID string) (*Overview, error)
}

// Service exposes the draft app as JSON over HTTP
type Service struct {
	app DraftApp
}

// NewService creates a new draft HTTP service
func NewService(app DraftApp) *Service {
	return &Service{app: app}
}

// RegisterRoutes mounts the draft routes. Callers install auth.Middleware in front of them.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/leagues/{leagueID}/drafts/current", s.GetCurrentOverview)

	r.Get("/drafts/{id}", s.GetOverview)
	r.Get("/drafts/{id}/picks", s.ListPicks)
	r.Post("/drafts/{id}/picks", s.MakePick)
	r.Get("/drafts/{id}/players", s.ListAvailablePlayers)
	r.Get("/drafts/{id}/queues/{team}", s.GetTeamQueue)
	r.Put("/drafts/{id}/queues/{team}", s.SetTeamQueue)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Post("/drafts", s.CreateDraft)
		r.Post("/drafts/{id}/start", s.StartDraft)
		r.Post("/drafts/{id}/pause", s.PauseDraft)
		r.Post("/drafts/{id}/resume", s.ResumeDraft)
		r.Put("/drafts/{id}/clock", s.SetClock)
		r.Post("/drafts/{id}/force-pick", s.ForcePick)
		r.Delete("/drafts/{id}/picks/last", s.UndoLastPick)
		r.Put("/drafts/{id}/pool", s.SetPool)
		r.Delete("/drafts/{id}/pool", s.ClearPool)
	})
}

// CreateDraft creates a new draft and its pick order
func (s *Service) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req CreateDraftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := s.app.CreateDraft(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// GetOverview returns the draft snapshot clients render
func (s *Service) GetOverview(w http.ResponseWriter, r *http.Request) {
	id, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	ov, err := s.app.GetOverview(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// GetCurrentOverview returns the snapshot of the league's active or latest draft
func (s *Service) GetCurrentOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.app.GetCurrentOverview(r.Context(), chi.URLParam(r, "leagueID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Service) StartDraft(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.app.StartDraft)
}

func (s *Service) PauseDraft(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.app.PauseDraft)
}

func (s *Service) ResumeDraft(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.app.ResumeDraft)
}

func (s *Service) UndoLastPick(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.app.UndoLastPick)
}

func (s *Service) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*models.Draft, error)) {
	id, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	d, err := fn(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type setClockBody struct {
	Seconds        int  `json:"seconds"`
	ApplyToCurrent bool `json:"apply_to_current"`
}

func (s *Service) SetClock(w http.ResponseWriter, r *http.Request) {
	id, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	var body setClockBody
	if !decodeBody(w, r, &body) {
		return
	}
	d, err := s.app.SetClockSeconds(r.Context(), id, body.Seconds, body.ApplyToCurrent)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type pickBody struct {
	PlayerID   string  `json:"player_id"`
	PlayerName *string `json:"player_name,omitempty"`
	Team       *string `json:"team,omitempty"`
}

// MakePick submits a pick for the caller's team. Admins may name the team, defaulting to the one on the clock.
func (s *Service) MakePick(w http.ResponseWriter, r *http.Request) {
	id, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	var body pickBody
	if !decodeBody(w, r, &body) {
		return
	}
	caller, _ := auth.FromContext(r.Context())

	team := caller.Team
	if caller.Admin {
		switch {
		case body.Team != nil:
			team = *body.Team
		case team == "":
			d, err := s.app.GetDraft(r.Context(), id)
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			if d.OnClockTeam == nil {
				writeAppError(w, r, fmt.Errorf("draft %s has no team on the clock: %w", id, models.ErrInvalidState))
				return
			}
			team = *d.OnClockTeam
		}
	} else if body.Team != nil && *body.Team != caller.Team {
		writeAppError(w, r, fmt.Errorf("cannot pick for team %q: %w", *body.Team, models.ErrTurnOwnership))
		return
	}
	if team == "" {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "token has no team")
		return
	}

	pick, err := s.app.MakePick(r.Context(), MakePickRequest{
		DraftID:    id,
		Team:       team,
		PlayerID:   body.PlayerID,
		PlayerName: body.PlayerName,
		MadeBy:     caller.UserID,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pick)
}

func (s *Service) ForcePick(w http.ResponseWriter, r *http.Request) {
	id, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	var body pickBody
	if !decodeBody(w, r, &body) {
		return
	}
	pick, err := s.app.ForcePick(r.Context(), ForcePickRequest{
		DraftID:    id,
		PlayerID:   body.PlayerID,
		PlayerName: body.PlayerName,
		Team:       body.Team,
		MadeBy:     models.MadeByAdmin,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pick)
}

func (s *Service) ListPicks(w http.ResponseWriter, r *http.Request) {
	id, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	picks, err := s.app.ListPicks(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if picks == nil {
		picks = []models.Pick{}
	}
	writeJSON(w, http.StatusOK, picks)
}

// ListAvailablePlayers accepts optional position and limit query parameters
func (s *Service) ListAvailablePlayers(w http.ResponseWriter, r *http.Request) {
	id, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	players, err := s.app.ListAvailablePlayers(r.Context(), id, r.URL.Query().Get("position"), limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

type poolBody struct {
	Players []models.PoolPlayer `json:"players"`
}

func (s *Service) SetPool(w http.ResponseWriter, r *http.Request) {
	id, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	var body poolBody
	if !decodeBody(w, r, &body) {
		return
	}
	n, err := s.app.SetPool(r.Context(), id, body.Players)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n, "custom_pool": n > 0})
}

func (s *Service) ClearPool(w http.ResponseWriter, r *http.Request) {
	id, ok := draftIDParam(w, r)
	if !ok {
		return
	}
	if err := s.app.ClearPool(r.Context(), id); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type queueBody struct {
	PlayerIDs []string `json:"player_ids"`
}

type queueResponse struct {
	Team      string   `json:"team"`
	PlayerIDs []string `json:"player_ids"`
}

func (s *Service) GetTeamQueue(w http.ResponseWriter, r *http.Request) {
	id, team, ok := s.queueParams(w, r)
	if !ok {
		return
	}
	ids, err := s.app.GetTeamQueue(r.Context(), id, team)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queueResponse{Team: team, PlayerIDs: ids})
}

func (s *Service) SetTeamQueue(w http.ResponseWriter, r *http.Request) {
	id, team, ok := s.queueParams(w, r)
	if !ok {
		return
	}
	var body queueBody
	if !decodeBody(w, r, &body) {
		return
	}
	ids, err := s.app.SetTeamQueue(r.Context(), id, team, body.PlayerIDs)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queueResponse{Team: team, PlayerIDs: ids})
}

// queueParams resolves the route and checks the caller owns the team or is an admin.
func (s *Service) queueParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	id, ok := draftIDParam(w, r)
	if !ok {
		return uuid.Nil, "", false
	}
	team := chi.URLParam(r, "team")
	caller, _ := auth.FromContext(r.Context())
	if !caller.CanActFor(team) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "queue belongs to another team")
		return uuid.Nil, "", false
	}
	return id, team, true
}

func draftIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid draft id")
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
		return false
	}
	return true
}

// StatusFor maps an engine error onto an HTTP status and a stable error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, models.ErrTurnOwnership):
		return http.StatusForbidden, "TURN_OWNERSHIP"
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, models.ErrPlayerUnavailable):
		return http.StatusConflict, "PLAYER_UNAVAILABLE"
	case errors.Is(err, models.ErrEmptyHistory):
		return http.StatusConflict, "EMPTY_HISTORY"
	case errors.Is(err, models.ErrStaleDraft):
		return http.StatusConflict, "STALE_DRAFT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("draft request failed")
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(msg), "code": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
