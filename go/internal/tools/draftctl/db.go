package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/draftroom/go/clients/sleeper_client"
	"github.com/mcdev12/draftroom/go/internal/auth"
	"github.com/mcdev12/draftroom/go/internal/config"
	"github.com/mcdev12/draftroom/go/internal/dbconfig"
	"github.com/mcdev12/draftroom/go/internal/draft/db"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/spf13/cobra"
)

func loadConfig(opts *globalOpts) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	config.SetupLogger(cfg.Log)
	return cfg, nil
}

func newMigrateCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		Long:  "Applies the embedded schema migrations to the database named by the DB_* environment or the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			conn, err := dbconfig.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			applied, err := db.Migrate(cmd.Context(), conn)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(out, "applied %s\n", name)
			}
			return nil
		},
	}
}

func newTokenCmd(opts *globalOpts) *cobra.Command {
	var (
		id     auth.Identity
		ttl    time.Duration
		secret string
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a signed API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				secret = cfg.Auth.Secret
				if ttl == 0 {
					ttl = cfg.Auth.TokenTTL
				}
			}
			if ttl == 0 {
				ttl = 24 * time.Hour
			}
			id.UserID = args[0]
			token, err := auth.Issue([]byte(secret), id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&id.Team, "team", "", "team the token may pick for")
	cmd.Flags().BoolVar(&id.Admin, "admin", false, "grant commissioner rights")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from config)")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default JWT_SECRET / config)")
	return cmd
}

type seedOpts struct {
	file      string
	sleeper   bool
	positions []string
	limit     int
}

func newSeedPoolCmd(opts *globalOpts) *cobra.Command {
	so := &seedOpts{}
	cmd := &cobra.Command{
		Use:   "seed-pool <draft-id>",
		Short: "Replace a draft's custom player pool directly in Postgres",
		Long: "Loads players from a JSON file (an array of {player_id, name, position, nfl_team, rank}) " +
			"or from the Sleeper catalog and bulk-copies them into the draft's pool.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draftID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid draft id: %w", err)
			}
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			players, err := so.load(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			players, err = preparePool(players, so.positions, so.limit)
			if err != nil {
				return err
			}

			pool, err := pgxpool.New(cmd.Context(), cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("connect error: %w", err)
			}
			defer pool.Close()

			n, err := copyPool(cmd.Context(), pool, draftID, players)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pool seed: draft=%s players=%d\n", draftID, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&so.file, "file", "", "JSON file of pool players")
	cmd.Flags().BoolVar(&so.sleeper, "sleeper", false, "build the pool from the Sleeper catalog")
	cmd.Flags().StringSliceVar(&so.positions, "positions", nil, "keep only these positions")
	cmd.Flags().IntVar(&so.limit, "limit", 0, "keep only the best-ranked N players (0 keeps all)")
	cmd.MarkFlagsMutuallyExclusive("file", "sleeper")
	cmd.MarkFlagsOneRequired("file", "sleeper")
	return cmd
}

func (so *seedOpts) load(ctx context.Context, cfg *config.Config) ([]models.PoolPlayer, error) {
	if so.file != "" {
		return loadPoolFile(so.file)
	}

	client := sleeper_client.NewClient(cfg.Sleeper.BaseURL, cfg.Sleeper.Timeout)
	raw, err := client.FetchNFLPlayers(ctx)
	if err != nil {
		return nil, err
	}
	var players []models.PoolPlayer
	for _, c := range sleeper_client.ToCatalog(raw) {
		if c.Active {
			players = append(players, c.AsPoolPlayer())
		}
	}
	return players, nil
}

func loadPoolFile(path string) ([]models.PoolPlayer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var players []models.PoolPlayer
	if err := json.Unmarshal(data, &players); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return players, nil
}

// preparePool filters by position, drops duplicate and blank ids, orders by rank
// (unranked last, then by id) and truncates to limit.
func preparePool(players []models.PoolPlayer, positions []string, limit int) ([]models.PoolPlayer, error) {
	keep := make(map[string]bool, len(positions))
	for _, p := range positions {
		keep[strings.ToUpper(strings.TrimSpace(p))] = true
	}

	seen := make(map[string]bool, len(players))
	out := make([]models.PoolPlayer, 0, len(players))
	for _, p := range players {
		p.PlayerID = strings.TrimSpace(p.PlayerID)
		if p.PlayerID == "" || seen[p.PlayerID] {
			continue
		}
		if len(keep) > 0 && !keep[strings.ToUpper(p.Position)] {
			continue
		}
		seen[p.PlayerID] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no players left to seed")
	}

	slices.SortStableFunc(out, func(a, b models.PoolPlayer) int {
		switch {
		case a.Rank != nil && b.Rank != nil && *a.Rank != *b.Rank:
			return *a.Rank - *b.Rank
		case a.Rank != nil && b.Rank == nil:
			return -1
		case a.Rank == nil && b.Rank != nil:
			return 1
		}
		return strings.Compare(a.PlayerID, b.PlayerID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// copyPool swaps the draft's pool rows in one transaction.
func copyPool(ctx context.Context, pool *pgxpool.Pool, draftID uuid.UUID, players []models.PoolPlayer) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	if err := tx.QueryRow(ctx, `SELECT status FROM drafts WHERE id = $1 FOR UPDATE`, draftID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("draft %s not found", draftID)
		}
		return 0, fmt.Errorf("failed to lock draft: %w", err)
	}
	if status == string(models.DraftStatusCompleted) {
		return 0, fmt.Errorf("draft %s is completed", draftID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM draft_pool_players WHERE draft_id = $1`, draftID); err != nil {
		return 0, fmt.Errorf("failed to clear pool: %w", err)
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"draft_pool_players"},
		[]string{"draft_id", "player_id", "name", "position", "nfl_team", "rank"},
		pgx.CopyFromSlice(len(players), func(i int) ([]any, error) {
			p := players[i]
			return []any{draftID, p.PlayerID, p.Name, p.Position, p.NFLTeam, p.Rank}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy pool: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit pool: %w", err)
	}
	return n, nil
}
