package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"codetrail/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg := loadConfig()

	apiKey := cfg.Analyzer.APIKey
	addr := cfg.Daemon.Addr
	idle := cfg.IdleTimeout().String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Anthropic API key").
				Description("Used to generate session insights. Leave empty to skip analysis.").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),

			huh.NewInput().
				Title("Daemon listen address").
				Description("Local address the recording API binds to.").
				Value(&addr).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("address must not be empty")
					}
					return nil
				}),

			huh.NewSelect[string]().
				Title("Idle shutdown").
				Description("Stop the daemon after this long without requests.").
				Options(
					huh.NewOption("15 minutes", "15m"),
					huh.NewOption("30 minutes", "30m"),
					huh.NewOption("1 hour", "1h"),
					huh.NewOption("never", "0s"),
				).
				Value(&idle),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	cfg.Analyzer.APIKey = apiKey
	cfg.Daemon.Addr = addr
	if d, err := time.ParseDuration(idle); err == nil {
		cfg.SetIdleTimeout(d)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `codetrail setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
