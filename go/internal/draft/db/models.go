package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Draft struct {
	ID                uuid.UUID
	LeagueID          string
	Year              int32
	Rounds            int32
	Teams             []string
	ClockSeconds      int32
	Snake             bool
	Status            string
	CurOverall        int32
	OnClockTeam       sql.NullString
	ClockStartedAt    sql.NullTime
	DeadlineTs        sql.NullTime
	PausedRemainingMs sql.NullInt64
	StartedAt         sql.NullTime
	CompletedAt       sql.NullTime
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int64
}

type DraftSlot struct {
	DraftID     uuid.UUID
	Overall     int32
	Round       int32
	PickInRound int32
	Team        string
}

type DraftPick struct {
	DraftID    uuid.UUID
	Overall    int32
	Round      int32
	Team       string
	PlayerID   string
	PlayerName sql.NullString
	MadeBy     string
	MadeAt     time.Time
}

type DraftPoolPlayer struct {
	DraftID  uuid.UUID
	PlayerID string
	Name     string
	Position string
	NflTeam  sql.NullString
	Rank     sql.NullInt32
}

type DraftOutbox struct {
	ID        uuid.UUID
	DraftID   uuid.UUID
	EventType string
	Payload   pqtype.NullRawMessage
	CreatedAt time.Time
	SentAt    sql.NullTime
}
