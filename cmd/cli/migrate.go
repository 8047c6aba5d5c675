package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/archivehub/archivehub/internal/catalog/sqlite"
	"github.com/archivehub/archivehub/internal/catalog/sqlite/migrations"
	"github.com/archivehub/archivehub/internal/config"
)

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply catalog schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func runMigrate() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	if cfg.CatalogBackend != "sqlite" {
		return fmt.Errorf("the %s catalog backend has no schema migrations", cfg.CatalogBackend)
	}

	db, err := sqlite.OpenConnection(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Up(db); err != nil {
		return err
	}

	log.Info().Str("path", cfg.SQLitePath).Msg("Catalog schema is up to date")
	return nil
}
