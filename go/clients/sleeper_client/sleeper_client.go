// Package sleeper_client reads the public Sleeper NFL player directory.
package sleeper_client

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mcdev12/draftroom/go/clients"
	"github.com/mcdev12/draftroom/go/internal/models"
)

const DefaultBaseURL = "https://api.sleeper.app"

type Client struct {
	*clients.BaseClient
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{BaseClient: clients.NewBaseClient(baseURL)}
	if timeout > 0 {
		// the full directory is several megabytes
		c.SetTimeout(timeout)
	}
	return c
}

// Player is one entry of /v1/players/nfl.
type Player struct {
	PlayerID         string   `json:"player_id"`
	FullName         string   `json:"full_name"`
	FirstName        string   `json:"first_name"`
	LastName         string   `json:"last_name"`
	Position         string   `json:"position"`
	FantasyPositions []string `json:"fantasy_positions"`
	Team             *string  `json:"team"`
	SearchRank       *int     `json:"search_rank"`
	Active           bool     `json:"active"`
}

// Name returns the display name, falling back to first and last name for team defenses.
func (p Player) Name() string {
	if p.FullName != "" {
		return p.FullName
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// FetchNFLPlayers downloads the full player directory, keyed by player id.
func (c *Client) FetchNFLPlayers(ctx context.Context) (map[string]Player, error) {
	var players map[string]Player
	if err := c.GetJSON(ctx, "/v1/players/nfl", &players); err != nil {
		return nil, fmt.Errorf("failed to get nfl players: %w", err)
	}
	for id, p := range players {
		if p.PlayerID == "" {
			p.PlayerID = id
			players[id] = p
		}
	}
	return players, nil
}

// ToCatalog converts the directory into catalog entries ordered by player id.
func ToCatalog(players map[string]Player) []models.CatalogPlayer {
	out := make([]models.CatalogPlayer, 0, len(players))
	for _, p := range players {
		// Sleeper uses 9999999 for players with no ranking
		rank := p.SearchRank
		if rank != nil && *rank >= 9999999 {
			rank = nil
		}
		var team *string
		if p.Team != nil && *p.Team != "" {
			t := *p.Team
			team = &t
		}
		out = append(out, models.CatalogPlayer{
			PlayerID:   p.PlayerID,
			Name:       p.Name(),
			Position:   p.Position,
			NFLTeam:    team,
			SearchRank: rank,
			Active:     p.Active,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}
