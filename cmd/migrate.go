package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect the database schema version",
	RunE:  runMigrateStatus,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied schema migrations",
	RunE:  runMigrateStatus,
}

var migrateRollbackCmd = &cobra.Command{
	Use:    "rollback",
	Short:  "Reverse the most recent schema migration",
	Hidden: true,
	RunE:   runMigrateRollback,
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrateStatus(_ *cobra.Command, _ []string) error {
	st, err := openStore(loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	applied, err := st.AppliedMigrations()
	if err != nil {
		return fmt.Errorf("reading migration state: %w", err)
	}

	fmt.Println()
	for _, name := range applied {
		fmt.Printf("  applied  %s\n", name)
	}
	fmt.Printf("\n  %d migrations applied\n\n", len(applied))
	return nil
}

func runMigrateRollback(_ *cobra.Command, _ []string) error {
	st, err := openStore(loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	name, err := st.RollbackLast()
	if err != nil {
		return fmt.Errorf("rolling back: %w", err)
	}
	fmt.Printf("  Rolled back %s\n", name)
	return nil
}
