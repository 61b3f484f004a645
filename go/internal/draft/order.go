package draft

import (
	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// generateSlots materializes the pick order. Even rounds run in reverse when snake is set.
func generateSlots(draftID uuid.UUID, teams []string, rounds int, snake bool) []models.PickSlot {
	slots := make([]models.PickSlot, 0, rounds*len(teams))
	overall := 1
	for round := 1; round <= rounds; round++ {
		order := teams
		if snake && round%2 == 0 {
			order = reversed(teams)
		}
		for i, team := range order {
			slots = append(slots, models.PickSlot{
				DraftID:     draftID,
				Overall:     overall,
				Round:       round,
				PickInRound: i + 1,
				Team:        team,
			})
			overall++
		}
	}
	return slots
}

// slotAt computes the slot for a 1-based overall number without loading the persisted order.
func slotAt(d *models.Draft, overall int) (models.PickSlot, bool) {
	n := len(d.Teams)
	if n == 0 || overall < 1 || overall > d.TotalPicks() {
		return models.PickSlot{}, false
	}
	round := (overall-1)/n + 1
	idx := (overall - 1) % n
	teamIdx := idx
	if d.Snake && round%2 == 0 {
		teamIdx = n - 1 - idx
	}
	return models.PickSlot{
		DraftID:     d.ID,
		Overall:     overall,
		Round:       round,
		PickInRound: idx + 1,
		Team:        d.Teams[teamIdx],
	}, true
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
