package main

import (
	"errors"
	"fmt"
	"strconv"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, storage.Up)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "steps [n]",
		Short: "Apply n migrations, negative n rolls back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("steps must be an integer: %w", err)
			}
			return withMigrator(cmd, func(m *migrate.Migrate) error { return storage.Steps(m, n) })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(*migrate.Migrate) error { return nil })
		},
	})
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*migrate.Migrate) error) error {
	envs, err := config.LoadEnv()
	if err != nil {
		return err
	}
	m, err := storage.NewMigrator(envs.String("DATABASE_URL", ""))
	if err != nil {
		return err
	}
	defer m.Close()

	if err := fn(m); err != nil {
		return err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(cmd.OutOrStdout(), "schema version: none")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d (dirty: %t)\n", version, dirty)
	return nil
}
