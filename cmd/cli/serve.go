package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/archivehub/archivehub/internal/config"
	"github.com/archivehub/archivehub/internal/server"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the archive service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	deps, err := BuildAppDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Catalog.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close catalog")
		}
	}()

	app := server.NewHTTPServer(server.HTTPServerDependencies{
		ArchiveController: deps.ArchiveController,
		BodyLimit:         cfg.MaxFileSize,
	})

	log.Info().
		Str("address", cfg.HTTPAddress).
		Str("catalog", cfg.CatalogBackend).
		Str("upload_dir", cfg.UploadDir).
		Msg("Starting archive service")

	if err := app.Listen(cfg.HTTPAddress, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}

	log.Info().Msg("Archive service stopped")
	return nil
}
