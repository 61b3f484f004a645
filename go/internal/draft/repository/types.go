package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// ApplyPickRequest writes a pick and the resulting draft state in one transaction.
// Draft carries the next version; the write fails with models.ErrStaleDraft when
// the stored row has moved on since it was read.
type ApplyPickRequest struct {
	Pick   models.Pick
	Draft  *models.Draft
	Events []events.Event
}

// RevertPickRequest deletes the pick at Overall and writes the rewound draft state.
type RevertPickRequest struct {
	Overall int
	Draft   *models.Draft
	Events  []events.Event
}

// SetQueueRequest overwrites one team's queue.
type SetQueueRequest struct {
	DraftID   uuid.UUID
	Team      string
	PlayerIDs []string
	UpdatedAt time.Time
	Events    []events.Event
}

// NextDeadline is the earliest pending clock expiry across live drafts.
type NextDeadline struct {
	DraftID  uuid.UUID
	Deadline *time.Time
}
