package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/draftroom/go/internal/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Getenv("DRAFTROOM_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.SetupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("draftroom exited with error")
	}
	log.Info().Msg("draftroom stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	services, err := setupServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	server := setupServer(cfg, services)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return services.Connections.Run(gctx) })
	if services.Scheduler != nil {
		g.Go(func() error { return services.Scheduler.Run(gctx) })
	}
	if services.Relay != nil {
		g.Go(func() error { return services.Relay.Run(gctx) })
	}
	if services.Consumer != nil {
		g.Go(func() error { return services.Consumer.Run(gctx) })
	}
	if services.Discord != nil {
		g.Go(func() error { return services.Discord.Run(gctx) })
	}

	g.Go(func() error {
		log.Info().
			Str("addr", server.Addr).
			Str("storage", cfg.Storage.Driver).
			Bool("auth", !cfg.Auth.Disabled).
			Msg("starting draftroom server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down HTTP server")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
