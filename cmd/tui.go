package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"codetrail/internal/tui"
)

var flagTUIDate string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive dashboard",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&flagTUIDate, "date", "", "Dashboard date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	st, err := openStore(loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	// Force TrueColor so background styling renders even when lipgloss
	// would fall back to the Ascii profile.
	lipgloss.SetColorProfile(termenv.TrueColor)

	app := tui.NewApp(st, flagTUIDate)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
