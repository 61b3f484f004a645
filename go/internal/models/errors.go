package models

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state for operation")
	ErrTurnOwnership     = errors.New("team is not on the clock")
	ErrPlayerUnavailable = errors.New("player is not available")
	ErrEmptyHistory      = errors.New("no picks to undo")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrStaleDraft        = errors.New("draft was modified concurrently")
)
