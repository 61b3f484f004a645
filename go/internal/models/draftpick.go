package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MadeByAdmin    = "admin"
	MadeByAutopick = "autopick"
)

// PickSlot is one position in the materialized draft order.
type PickSlot struct {
	DraftID     uuid.UUID `json:"draft_id"`
	Overall     int       `json:"overall"`       // pick number overall, 1-based
	Round       int       `json:"round"`         // 1-based
	PickInRound int       `json:"pick_in_round"` // 1-based
	Team        string    `json:"team"`
}

// Pick is an executed selection filling a slot.
type Pick struct {
	DraftID    uuid.UUID `json:"draft_id"`
	Overall    int       `json:"overall"`
	Round      int       `json:"round"`
	Team       string    `json:"team"`
	PlayerID   string    `json:"player_id"`
	PlayerName *string   `json:"player_name,omitempty"`
	MadeBy     string    `json:"made_by"`
	MadeAt     time.Time `json:"made_at"`
}

// TeamQueue is a team's ordered autopick preference list.
type TeamQueue struct {
	DraftID   uuid.UUID `json:"draft_id"`
	Team      string    `json:"team"`
	PlayerIDs []string  `json:"player_ids"`
	UpdatedAt time.Time `json:"updated_at"`
}
