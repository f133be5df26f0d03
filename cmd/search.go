package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codetrail/internal/cli"
	"codetrail/internal/config"
	"codetrail/internal/model"
	"codetrail/internal/store"
)

var (
	flagSearchFrom       string
	flagSearchTo         string
	flagSearchProject    string
	flagSearchBookmarked bool
	flagSearchLimit      int
	flagSearchOffset     int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search across recorded sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&flagSearchFrom, "from", "", "Earliest date (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&flagSearchTo, "to", "", "Latest date (YYYY-MM-DD)")
	searchCmd.Flags().StringVarP(&flagSearchProject, "project", "p", "", "Filter to project")
	searchCmd.Flags().BoolVarP(&flagSearchBookmarked, "bookmarked", "b", false, "Bookmarked sessions only")
	searchCmd.Flags().IntVarP(&flagSearchLimit, "limit", "l", 20, "Max results")
	searchCmd.Flags().IntVar(&flagSearchOffset, "offset", 0, "Results to skip")
	rootCmd.AddCommand(searchCmd)
}

// searchOptions maps the search config section onto store options.
func searchOptions(cfg config.Config) store.SearchOptions {
	return store.SearchOptions{
		HighlightStart: cfg.Search.HighlightStart,
		HighlightEnd:   cfg.Search.HighlightEnd,
		MaxResults:     cfg.Search.MaxResults,
	}
}

func runSearch(_ *cobra.Command, args []string) error {
	cfg := loadConfig()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	opts := searchOptions(cfg)
	results, err := st.Search(model.SearchQuery{
		Text:           strings.Join(args, " "),
		From:           flagSearchFrom,
		To:             flagSearchTo,
		Project:        flagSearchProject,
		BookmarkedOnly: flagSearchBookmarked,
		Limit:          flagSearchLimit,
		Offset:         flagSearchOffset,
	}, opts)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	fmt.Println()
	fmt.Print(cli.RenderSearchResults(results, opts.HighlightStart, opts.HighlightEnd))
	fmt.Println()
	return nil
}
