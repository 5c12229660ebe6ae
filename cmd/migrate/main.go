package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/noah-isme/geo-attendance-api/pkg/config"
	"github.com/noah-isme/geo-attendance-api/pkg/database"
)

type dbOpener func(ctx context.Context) (*sqlx.DB, error)

func main() {
	open := func(ctx context.Context) (*sqlx.DB, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return database.NewPostgres(ctx, cfg.Database)
	}
	if err := newRootCommand(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(open dbOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the geo attendance database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		migrationCommand(open, "up", "Apply all pending migrations", func(ctx context.Context, db *sqlx.DB, _ *cobra.Command) error {
			return database.MigrateUp(ctx, db.DB)
		}),
		migrationCommand(open, "down", "Roll back the latest migration", func(ctx context.Context, db *sqlx.DB, _ *cobra.Command) error {
			return database.MigrateDown(ctx, db.DB)
		}),
		migrationCommand(open, "status", "Show applied and pending migrations", func(ctx context.Context, db *sqlx.DB, _ *cobra.Command) error {
			return database.MigrationStatus(ctx, db.DB)
		}),
		migrationCommand(open, "version", "Print the current schema version", func(ctx context.Context, db *sqlx.DB, cmd *cobra.Command) error {
			version, err := database.MigrationVersion(ctx, db.DB)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		}),
	)
	return cmd
}

func migrationCommand(open dbOpener, use, short string, run func(ctx context.Context, db *sqlx.DB, cmd *cobra.Command) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, err := open(ctx)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()
			return run(ctx, db, cmd)
		},
	}
}
