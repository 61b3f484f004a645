package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/draftroom/go/internal/dbconfig"
	"github.com/mcdev12/draftroom/go/internal/draft/db"
	"github.com/rs/zerolog/log"
)

func setupDatabase(ctx context.Context, cfg dbconfig.Config) (*sql.DB, error) {
	database, err := dbconfig.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	applied, err := db.Migrate(ctx, database)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if len(applied) > 0 {
		log.Info().Strs("migrations", applied).Msg("applied database migrations")
	}
	return database, nil
}
