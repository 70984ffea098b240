package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/varela-dev/multipass/internal/observability/logger"
	"github.com/varela-dev/multipass/internal/store/pg"
	migrations "github.com/varela-dev/multipass/migrations/postgres"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	var flagDown bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica (o revierte) las migraciones del esquema global",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
			defer func() { _ = logger.Sync() }()

			if cfg.Storage.Driver != "postgres" {
				return errors.New("migrate requiere storage.driver=postgres")
			}

			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			pgStore := store.(*pg.Store)
			if flagDown {
				return pgStore.RunMigrationsDown(ctx, migrations.FS)
			}
			return pgStore.RunMigrations(ctx, migrations.FS)
		},
	}
	cmd.Flags().BoolVar(&flagDown, "down", false, "revierte en orden inverso")
	return cmd
}
