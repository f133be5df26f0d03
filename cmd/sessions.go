package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"codetrail/internal/cli"
	"codetrail/internal/model"
)

var (
	flagSessionsDate       string
	flagSessionsFrom       string
	flagSessionsTo         string
	flagSessionsProject    string
	flagSessionsBookmarked bool
	flagSessionsRecent     bool
	flagSessionsLimit      int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE:  runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&flagSessionsDate, "date", "", "Exact date (YYYY-MM-DD)")
	sessionsCmd.Flags().StringVar(&flagSessionsFrom, "from", "", "Earliest date (YYYY-MM-DD)")
	sessionsCmd.Flags().StringVar(&flagSessionsTo, "to", "", "Latest date (YYYY-MM-DD)")
	sessionsCmd.Flags().StringVarP(&flagSessionsProject, "project", "p", "", "Filter to project")
	sessionsCmd.Flags().BoolVarP(&flagSessionsBookmarked, "bookmarked", "b", false, "Bookmarked sessions only")
	sessionsCmd.Flags().BoolVar(&flagSessionsRecent, "recent", false, "Order by recency instead of bookmarked-first")
	sessionsCmd.Flags().IntVarP(&flagSessionsLimit, "limit", "l", 20, "Number of sessions to show")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(_ *cobra.Command, _ []string) error {
	if flagSessionsDate != "" && (flagSessionsFrom != "" || flagSessionsTo != "") {
		return fmt.Errorf("--date and --from/--to are mutually exclusive")
	}

	st, err := openStore(loadConfig())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	sessions, err := st.GetSessions(model.SessionFilter{
		Date:           flagSessionsDate,
		From:           flagSessionsFrom,
		To:             flagSessionsTo,
		Project:        flagSessionsProject,
		BookmarkedOnly: flagSessionsBookmarked,
		RecencyOnly:    flagSessionsRecent,
		Limit:          flagSessionsLimit,
	})
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("SESSIONS (%d)", len(sessions))))
	fmt.Println()
	fmt.Print(cli.RenderSessions(sessions))
	fmt.Println()
	return nil
}
