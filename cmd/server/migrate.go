package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kiranshivaraju/ednaflow/internal/store"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "",
		"Postgres connection string (default: $DATABASE_URL)")

	resolve := func() (string, error) {
		if databaseURL != "" {
			return databaseURL, nil
		}
		if v := os.Getenv("DATABASE_URL"); v != "" {
			return v, nil
		}
		return "", errors.New("DATABASE_URL is required")
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := resolve()
			if err != nil {
				return err
			}
			if err := store.RunMigrations(url); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			return printVersion(cmd, url)
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all of them unless --steps is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := resolve()
			if err != nil {
				return err
			}
			if err := store.RollbackMigrations(url, steps); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			return printVersion(cmd, url)
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 0, "Number of migrations to roll back (0 = all)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := resolve()
			if err != nil {
				return err
			}
			return printVersion(cmd, url)
		},
	}

	cmd.AddCommand(upCmd, downCmd, versionCmd)
	return cmd
}

func printVersion(cmd *cobra.Command, url string) error {
	version, dirty, err := store.MigrationVersion(url)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
	return nil
}
