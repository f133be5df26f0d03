package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"codetrail/internal/model"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorBlue      = lipgloss.Color("#4385BE")
	ColorYellow    = lipgloss.Color("#D0A215")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	bookmarkStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	matchStyle = lipgloss.NewStyle().
			Foreground(ColorOrange).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)
)

// Table is a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table with headers and rows.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	numCols := len(t.Headers)
	if numCols == 0 && len(t.Rows) > 0 {
		numCols = len(t.Rows[0])
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		if len(h) > widths[i] {
			widths[i] = len(h)
		}
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < numCols && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder

	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	rule := func(left, mid, right string) {
		b.WriteString(dimStyle.Render(left))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render(mid))
			}
		}
		b.WriteString(dimStyle.Render(right))
		b.WriteString("\n")
	}

	rule("╭", "┬", "╮")

	if len(t.Headers) > 0 {
		b.WriteString(dimStyle.Render("│"))
		for i, h := range t.Headers {
			b.WriteString(headerStyle.Render(fmt.Sprintf(" %-*s ", widths[i], h)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
		rule("├", "┼", "┤")
	}

	for _, row := range t.Rows {
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			// Right-align numeric columns (all except first).
			var padded string
			if i == 0 {
				padded = fmt.Sprintf(" %-*s ", widths[i], cell)
			} else {
				padded = fmt.Sprintf(" %*s ", widths[i], cell)
			}
			b.WriteString(valueStyle.Render(padded))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
	}

	rule("╰", "┴", "╯")

	return b.String()
}

// RenderReport renders the daily report view.
func RenderReport(rep model.DailyReport) string {
	var b strings.Builder

	b.WriteString(RenderTitle("codetrail — " + rep.Date))
	b.WriteString("\n\n")

	stats := rep.Stats
	b.WriteString(RenderTable(Table{
		Headers: []string{"Sessions", "Messages", "Tokens in", "Tokens out", "Cost"},
		Rows: [][]string{{
			FormatNumber(stats.SessionCount),
			FormatNumber(stats.MessageCount),
			FormatTokens(stats.TotalInputTokens),
			FormatTokens(stats.TotalOutputTokens),
			FormatCost(stats.TotalInputCost + stats.TotalOutputCost),
		}},
	}))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("  %s %s current · %s longest · %s active days\n",
		headerStyle.Render("Streak:"),
		valueStyle.Render(fmt.Sprintf("%d", rep.Streak.CurrentStreak)),
		mutedStyle.Render(fmt.Sprintf("%d", rep.Streak.LongestStreak)),
		mutedStyle.Render(fmt.Sprintf("%d", rep.Streak.TotalActiveDays)),
	))
	if rep.EndedSessions > 0 {
		b.WriteString(fmt.Sprintf("  %s %s average over %d ended\n",
			headerStyle.Render("Duration:"),
			valueStyle.Render(FormatDuration(int64(rep.AvgDurationSecs))),
			rep.EndedSessions,
		))
	}
	b.WriteString("\n")

	if len(rep.Sessions) == 0 {
		b.WriteString(mutedStyle.Render("  No sessions recorded.\n"))
		return b.String()
	}

	for _, entry := range rep.Sessions {
		b.WriteString(renderSessionLine(entry.Session))
		if entry.Insight != nil {
			b.WriteString(mutedStyle.Render("      ▸ " + Truncate(entry.Insight.Summary, 70)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// RenderSessions renders a session list.
func RenderSessions(sessions []model.Session) string {
	if len(sessions) == 0 {
		return mutedStyle.Render("  No sessions found.\n")
	}

	var b strings.Builder
	for _, sess := range sessions {
		b.WriteString(renderSessionLine(sess))
	}
	return b.String()
}

func renderSessionLine(sess model.Session) string {
	marker := " "
	if sess.IsBookmarked {
		marker = bookmarkStyle.Render("★")
	}

	project := "-"
	if sess.ProjectName != nil {
		project = *sess.ProjectName
	}

	title := "(no summary)"
	if sess.Summary != nil {
		title = Truncate(*sess.Summary, 60)
	}

	when := sess.StartedAt.Format("15:04")
	length := mutedStyle.Render("open")
	if sess.EndedAt != nil {
		length = mutedStyle.Render(FormatDuration(int64(sess.Duration().Seconds())))
	}

	return fmt.Sprintf("  %s %s %s %s %s  %s\n",
		marker,
		dimStyle.Render(when),
		headerStyle.Render(Truncate(project, 20)),
		valueStyle.Render(title),
		length,
		dimStyle.Render(Truncate(sess.ID, 12)),
	)
}

// RenderSearchResults renders ranked search hits. Snippets arrive with
// the configured highlight markers already embedded; they are restyled
// for the terminal here.
func RenderSearchResults(results []model.SearchResult, highlightStart, highlightEnd string) string {
	if len(results) == 0 {
		return mutedStyle.Render("  No matches.\n")
	}

	var b strings.Builder
	for i, r := range results {
		label := string(r.Type)
		marker := " "
		if r.IsBookmarked {
			marker = bookmarkStyle.Render("★")
		}
		project := ""
		if r.ProjectName != nil {
			project = *r.ProjectName
		}

		b.WriteString(fmt.Sprintf("  %2d. %s %s %s %s\n",
			i+1,
			marker,
			dimStyle.Render(r.Timestamp.Format("2006-01-02 15:04")),
			headerStyle.Render(project),
			mutedStyle.Render(label),
		))
		b.WriteString("      " + styleSnippet(r.Snippet, highlightStart, highlightEnd) + "\n")
	}
	return b.String()
}

// styleSnippet swaps snippet highlight markers for terminal styling.
func styleSnippet(snippet, start, end string) string {
	var b strings.Builder
	rest := snippet
	for {
		pre, match, found := strings.Cut(rest, start)
		b.WriteString(valueStyle.Render(pre))
		if !found {
			break
		}
		hit, post, found := strings.Cut(match, end)
		if !found {
			b.WriteString(valueStyle.Render(match))
			break
		}
		b.WriteString(matchStyle.Render(hit))
		rest = post
	}
	return b.String()
}
