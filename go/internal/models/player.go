package models

// PoolPlayer is a row of an admin-uploaded custom player pool.
type PoolPlayer struct {
	PlayerID string  `json:"player_id"`
	Name     string  `json:"name"`
	Position string  `json:"position"`
	NFLTeam  *string `json:"nfl_team,omitempty"`
	Rank     *int    `json:"rank,omitempty"`
}

// CatalogPlayer is an entry of the upstream player catalog.
type CatalogPlayer struct {
	PlayerID   string  `json:"player_id"`
	Name       string  `json:"name"`
	Position   string  `json:"position"`
	NFLTeam    *string `json:"nfl_team,omitempty"`
	SearchRank *int    `json:"search_rank,omitempty"`
	Active     bool    `json:"active"`
}

// AsPoolPlayer projects a catalog entry onto the pool shape.
func (c CatalogPlayer) AsPoolPlayer() PoolPlayer {
	return PoolPlayer{
		PlayerID: c.PlayerID,
		Name:     c.Name,
		Position: c.Position,
		NFLTeam:  c.NFLTeam,
		Rank:     c.SearchRank,
	}
}
