package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/roster-engine/store/sqlite"
)

var migrateDB string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the SQLite schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationStore(func(s *sqlite.Store) error { return s.MigrateUp() })
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationStore(func(s *sqlite.Store) error { return s.MigrateDown() })
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationStore(func(s *sqlite.Store) error {
			version, dirty, err := s.MigrateVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
			return nil
		})
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrateDB, "db", "", "SQLite database path (overrides server.db_path)")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func withMigrationStore(fn func(*sqlite.Store) error) error {
	path := cfg.Server.DBPath
	if migrateDB != "" {
		path = migrateDB
	}
	store, err := sqlite.Open(path, sqlite.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
