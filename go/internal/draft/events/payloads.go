package events

import (
	"time"
)

// Event payload types shared by the engine, outbox and gateway packages

// DraftCreatedPayload is the payload for a DraftCreated event
type DraftCreatedPayload struct {
	DraftID      string   `json:"draft_id"`
	LeagueID     string   `json:"league_id"`
	Year         int      `json:"year"`
	Rounds       int      `json:"rounds"`
	Teams        []string `json:"teams"`
	ClockSeconds int      `json:"clock_seconds"`
	Snake        bool     `json:"snake"`
}

// DraftStartedPayload is the payload for a DraftStarted event
type DraftStartedPayload struct {
	DraftID     string    `json:"draft_id"`
	StartedAt   time.Time `json:"started_at"`
	TotalRounds int       `json:"total_rounds"`
	TotalPicks  int       `json:"total_picks"`
}

// PickStartedPayload is the payload for a PickStarted event
type PickStartedPayload struct {
	Team           string    `json:"team"`
	Round          int       `json:"round"`
	PickInRound    int       `json:"pick_in_round"`
	OverallPick    int       `json:"overall_pick"`
	StartedAt      time.Time `json:"started_at"`
	TimeoutAt      time.Time `json:"timeout_at"`
	TimePerPickSec int       `json:"time_per_pick_sec"`
}

// PickMadePayload is the payload for a PickMade event
type PickMadePayload struct {
	Team        string    `json:"team"`
	PlayerID    string    `json:"player_id"`
	PlayerName  string    `json:"player_name,omitempty"`
	Round       int       `json:"round"`
	OverallPick int       `json:"overall_pick"`
	MadeBy      string    `json:"made_by"`
	MadeAt      time.Time `json:"made_at"`
}

// PickUndonePayload is the payload for a PickUndone event
type PickUndonePayload struct {
	Team        string `json:"team"`
	PlayerID    string `json:"player_id"`
	OverallPick int    `json:"overall_pick"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event
type DraftCompletedPayload struct {
	DraftID     string    `json:"draft_id"`
	CompletedAt time.Time `json:"completed_at"`
	Duration    string    `json:"duration"`
	TotalPicks  int       `json:"total_picks"`
}

// DraftPausedPayload is the payload for a DraftPaused event
type DraftPausedPayload struct {
	DraftID     string    `json:"draft_id"`
	PausedAt    time.Time `json:"paused_at"`
	RemainingMs int64     `json:"remaining_ms"`
	Reason      string    `json:"reason"`
}

// DraftResumedPayload is the payload for a DraftResumed event
type DraftResumedPayload struct {
	DraftID   string    `json:"draft_id"`
	ResumedAt time.Time `json:"resumed_at"`
	TimeoutAt time.Time `json:"timeout_at"`
}

// ClockChangedPayload is the payload for a ClockChanged event
type ClockChangedPayload struct {
	ClockSeconds     int        `json:"clock_seconds"`
	AppliedToCurrent bool       `json:"applied_to_current"`
	TimeoutAt        *time.Time `json:"timeout_at,omitempty"`
}

// QueueUpdatedPayload is the payload for a QueueUpdated event
type QueueUpdatedPayload struct {
	Team  string `json:"team"`
	Count int    `json:"count"`
}

// PoolUpdatedPayload is the payload for a PoolUpdated event
type PoolUpdatedPayload struct {
	Count  int  `json:"count"`
	Custom bool `json:"custom"`
}
