package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftStatus defines the status of a draft.
type DraftStatus string

const (
	DraftStatusNotStarted DraftStatus = "NOT_STARTED"
	DraftStatusLive       DraftStatus = "LIVE"
	DraftStatusPaused     DraftStatus = "PAUSED"
	DraftStatusCompleted  DraftStatus = "COMPLETED"
)

// Valid reports whether s is one of the known statuses.
func (s DraftStatus) Valid() bool {
	switch s {
	case DraftStatusNotStarted, DraftStatusLive, DraftStatusPaused, DraftStatusCompleted:
		return true
	}
	return false
}

// Draft represents a draft instance together with its clock and turn state.
type Draft struct {
	ID           uuid.UUID   `json:"id"`
	LeagueID     string      `json:"league_id"`
	Year         int         `json:"year"`
	Rounds       int         `json:"rounds"`
	Teams        []string    `json:"teams"`
	ClockSeconds int         `json:"clock_seconds"`
	Snake        bool        `json:"snake"`
	Status       DraftStatus `json:"status"`

	// CurOverall counts filled slots; the slot on the clock is CurOverall+1.
	CurOverall        int        `json:"cur_overall"`
	OnClockTeam       *string    `json:"on_clock_team,omitempty"`
	ClockStartedAt    *time.Time `json:"clock_started_at,omitempty"`
	DeadlineTs        *time.Time `json:"deadline_ts,omitempty"`
	PausedRemainingMs *int64     `json:"paused_remaining_ms,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Version increases by one on every state write. Stores accept a write only
	// when the stored version is exactly one below the written one.
	Version int64 `json:"version"`
}

// TotalPicks is the number of slots in the draft.
func (d *Draft) TotalPicks() int {
	return d.Rounds * len(d.Teams)
}

// HasTeam reports whether team takes part in the draft.
func (d *Draft) HasTeam(team string) bool {
	for _, t := range d.Teams {
		if t == team {
			return true
		}
	}
	return false
}

// Clock returns the per-pick duration.
func (d *Draft) Clock() time.Duration {
	return time.Duration(d.ClockSeconds) * time.Second
}

// Next returns a copy stamped as the successor of d at now.
func (d *Draft) Next(now time.Time) *Draft {
	n := d.Clone()
	n.Version = d.Version + 1
	n.UpdatedAt = now
	return n
}

// Clone returns a deep copy so callers can mutate state without touching shared records.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	c.Teams = append([]string(nil), d.Teams...)
	c.OnClockTeam = clonePtr(d.OnClockTeam)
	c.ClockStartedAt = clonePtr(d.ClockStartedAt)
	c.DeadlineTs = clonePtr(d.DeadlineTs)
	c.PausedRemainingMs = clonePtr(d.PausedRemainingMs)
	c.StartedAt = clonePtr(d.StartedAt)
	c.CompletedAt = clonePtr(d.CompletedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
