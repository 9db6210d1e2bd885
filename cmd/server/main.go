package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"rift-rewind/internal/config"
	"rift-rewind/internal/constants"
	fxmodules "rift-rewind/internal/fx"
	"rift-rewind/internal/middleware"
	"rift-rewind/internal/server"
	"rift-rewind/internal/worker"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runWorkers),
		fx.Invoke(runServer),
	).Run()
}

func runWorkers(lc fx.Lifecycle, runner *worker.Runner) {
	lc.Append(fx.Hook{
		OnStart: runner.Start,
		OnStop:  runner.Stop,
	})
}

func runServer(
	lc fx.Lifecycle,
	rewindServer *server.RewindServer,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rewind", rewindServer.Rewind)
	mux.HandleFunc("/api/reprocess", rewindServer.Reprocess)
	mux.HandleFunc("/healthz", rewindServer.Healthz)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := middleware.RequestID(logger)(c.Handler(mux))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: handler,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}

			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
