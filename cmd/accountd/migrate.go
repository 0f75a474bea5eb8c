// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"os"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/driftbox/accountd/internal/store"
)

// NewMigrateCmd creates the migrate subcommand with up/down/status/force.
func NewMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back, or inspect schema migrations on the PostgreSQL database.`,
	}

	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (defaults to DATABASE_URL)")

	resolveURL := func() (string, error) {
		if databaseURL != "" {
			return databaseURL, nil
		}
		if url := os.Getenv("DATABASE_URL"); url != "" {
			return url, nil
		}
		return "", oops.Code("CONFIG_INVALID").Errorf("--database-url or the DATABASE_URL environment variable is required")
	}

	withMigrator := func(fn func(cmd *cobra.Command, m *store.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			url, err := resolveURL()
			if err != nil {
				return err
			}
			m, err := store.NewMigrator(url)
			if err != nil {
				return err
			}
			defer func() {
				_ = m.Close() //nolint:errcheck // best effort on CLI exit
			}()
			return fn(cmd, m)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *store.Migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (destructive)",
		RunE: withMigrator(func(cmd *cobra.Command, m *store.Migrator) error {
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("migrations rolled back")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		RunE: withMigrator(func(cmd *cobra.Command, m *store.Migrator) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			cmd.Printf("version: %d dirty: %v\n", version, dirty)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the migration version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").With("arg", args[0]).Wrap(err)
			}
			url, urlErr := resolveURL()
			if urlErr != nil {
				return urlErr
			}
			m, newErr := store.NewMigrator(url)
			if newErr != nil {
				return newErr
			}
			defer func() {
				_ = m.Close() //nolint:errcheck // best effort on CLI exit
			}()
			if err := m.Force(version); err != nil {
				return err
			}
			cmd.Printf("forced version to %d\n", version)
			return nil
		},
	})

	return cmd
}
