package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"codetrail/internal/cli"
	"codetrail/internal/report"
)

var flagReportDate string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Daily activity report",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&flagReportDate, "date", "", "Report date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(_ *cobra.Command, _ []string) error {
	if flagReportDate != "" {
		if _, err := time.Parse("2006-01-02", flagReportDate); err != nil {
			return fmt.Errorf("invalid date %q: want YYYY-MM-DD", flagReportDate)
		}
	}

	st, err := openStore(loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	rep, err := report.Daily(st, flagReportDate)
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}

	fmt.Println()
	fmt.Print(cli.RenderReport(rep))
	fmt.Println()
	return nil
}
