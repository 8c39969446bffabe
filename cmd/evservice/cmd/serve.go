package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/evservice/app/portal"
	"github.com/dmitrymomot/evservice/core/config"
	"github.com/dmitrymomot/evservice/core/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web portal",
		Long: `Start the web portal. Configuration is read from the environment and an
optional .env file (SERVER_ADDR, BACKEND_URL, COOKIE_SECRETS, STORAGE_DURABLE,
STORAGE_SHORT_LIVED, REDIS_URL, PG_CONN_URL, PAYMENT_RETURN_URL, ...).

The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg portal.Config
			if err := config.Load(&cfg); err != nil {
				return err
			}
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := portal.NewApp(ctx, portal.WithConfig(cfg), portal.WithLogger(log))
			if err != nil {
				return err
			}
			defer app.Close()

			log.InfoContext(ctx, "starting portal", slog.String("addr", cfg.Server.Addr))
			return app.Run(ctx)
		},
	}
}

func newLogger(cfg portal.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	preset := logger.WithDevelopment(cfg.AppName)
	if cfg.Env == "production" {
		preset = logger.WithProduction(cfg.AppName)
	}
	return logger.New(preset, logger.WithLevel(level))
}
