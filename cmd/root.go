// Package cmd wires the codetrail command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codetrail/internal/config"
	"codetrail/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "codetrail",
	Short: "Record and search your coding-assistant sessions",
	Long: "codetrail records coding-assistant sessions into a local database\n" +
		"and lets you search, report on, and revisit them.",
	RunE: runReport,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it
// does not exist yet.
func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "  Warning: %v (using defaults)\n", err)
		return config.DefaultConfig()
	}
	return cfg
}

// openStore opens the database for the read-side commands.
func openStore(cfg config.Config) (*store.Store, error) {
	st, err := store.Open(config.DatabasePath(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}
