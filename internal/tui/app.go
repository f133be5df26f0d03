// Package tui provides the interactive Bubble Tea dashboard for codetrail.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"codetrail/internal/cli"
	"codetrail/internal/model"
	"codetrail/internal/report"
	"codetrail/internal/store"
)

// reportLoadedMsg is sent when the daily report finishes loading.
type reportLoadedMsg struct {
	report model.DailyReport
	err    error
}

// sessionMutatedMsg is sent after a bookmark toggle or delete.
type sessionMutatedMsg struct {
	status string
	err    error
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(cli.ColorText)

	accentStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(cli.ColorAccent)

	mutedStyle = lipgloss.NewStyle().
			Foreground(cli.ColorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(cli.ColorTextDim)

	starStyle = lipgloss.NewStyle().
			Foreground(cli.ColorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(cli.ColorOrange)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(cli.ColorText).
			Background(lipgloss.Color("#282726"))
)

// App is the root Bubble Tea model: today's report with a navigable
// session list.
type App struct {
	st   *store.Store
	date string // "" means today

	width  int
	height int

	spinner spinner.Model
	loading bool
	err     error

	report model.DailyReport
	cursor int
	status string

	// Delete confirmation (huh form overlay)
	confirm       *huh.Form
	confirmTarget string
	confirmValue  bool
}

// NewApp builds the dashboard over an open store.
func NewApp(st *store.Store, date string) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	return App{
		st:      st,
		date:    date,
		spinner: sp,
		loading: true,
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.loadReport())
}

func (a App) loadReport() tea.Cmd {
	st, date := a.st, a.date
	return func() tea.Msg {
		rep, err := report.Daily(st, date)
		return reportLoadedMsg{report: rep, err: err}
	}
}

func (a App) toggleBookmark(id string) tea.Cmd {
	st := a.st
	return func() tea.Msg {
		sess, err := st.ToggleBookmark(id, "")
		if err != nil {
			return sessionMutatedMsg{err: err}
		}
		status := "bookmark removed"
		if sess.IsBookmarked {
			status = "bookmarked"
		}
		return sessionMutatedMsg{status: status}
	}
}

func (a App) deleteSession(id string) tea.Cmd {
	st := a.st
	return func() tea.Msg {
		if err := st.DeleteSession(id); err != nil {
			return sessionMutatedMsg{err: err}
		}
		return sessionMutatedMsg{status: "session deleted"}
	}
}

func (a *App) selected() *model.Session {
	if a.cursor < 0 || a.cursor >= len(a.report.Sessions) {
		return nil
	}
	return &a.report.Sessions[a.cursor].Session
}

func (a *App) startConfirm(id string) {
	a.confirmTarget = id
	a.confirmValue = false
	a.confirm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Delete session " + cli.Truncate(id, 12) + "?").
				Description("Messages and insights go with it.").
				Affirmative("Delete").
				Negative("Keep").
				Value(&a.confirmValue),
		),
	)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case reportLoadedMsg:
		a.loading = false
		a.err = msg.err
		if msg.err == nil {
			a.report = msg.report
			if a.cursor >= len(a.report.Sessions) {
				a.cursor = len(a.report.Sessions) - 1
			}
			if a.cursor < 0 {
				a.cursor = 0
			}
		}
		return a, nil

	case sessionMutatedMsg:
		if msg.err != nil {
			a.status = errorStyle.Render(msg.err.Error())
			return a, nil
		}
		a.status = msg.status
		a.loading = true
		return a, tea.Batch(a.spinner.Tick, a.loadReport())
	}

	if a.confirm != nil {
		return a.updateConfirm(msg)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		return a.handleKey(key)
	}

	return a, nil
}

func (a App) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.confirm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.confirm = f
	}

	switch a.confirm.State {
	case huh.StateCompleted:
		target, confirmed := a.confirmTarget, a.confirmValue
		a.confirm = nil
		a.confirmTarget = ""
		if confirmed {
			return a, a.deleteSession(target)
		}
		return a, nil
	case huh.StateAborted:
		a.confirm = nil
		a.confirmTarget = ""
		return a, nil
	}

	return a, cmd
}

func (a App) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return a, tea.Quit

	case "j", "down":
		if a.cursor < len(a.report.Sessions)-1 {
			a.cursor++
		}
		return a, nil

	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case "r":
		a.loading = true
		a.status = ""
		return a, tea.Batch(a.spinner.Tick, a.loadReport())

	case "b":
		if sess := a.selected(); sess != nil {
			return a, a.toggleBookmark(sess.ID)
		}
		return a, nil

	case "d":
		if sess := a.selected(); sess != nil {
			a.startConfirm(sess.ID)
			return a, a.confirm.Init()
		}
		return a, nil
	}

	return a, nil
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.loading {
		return fmt.Sprintf("\n  %s loading today's sessions...\n", a.spinner.View())
	}
	if a.err != nil {
		return "\n  " + errorStyle.Render(a.err.Error()) + "\n"
	}
	if a.confirm != nil {
		return a.confirm.View()
	}

	var b strings.Builder

	b.WriteString("\n  ")
	b.WriteString(titleStyle.Render("codetrail"))
	b.WriteString(mutedStyle.Render("  " + a.report.Date))
	b.WriteString("\n\n")

	b.WriteString(a.viewStats())
	b.WriteString("\n")
	b.WriteString(a.viewSessions())
	b.WriteString("\n")

	if a.status != "" {
		b.WriteString("  " + mutedStyle.Render(a.status) + "\n")
	}
	b.WriteString(dimStyle.Render("  j/k move · b bookmark · d delete · r refresh · q quit"))
	b.WriteString("\n")

	return b.String()
}

func (a App) viewStats() string {
	stats := a.report.Stats
	line := fmt.Sprintf("  %s sessions  %s messages  %s in / %s out  %s",
		accentStyle.Render(cli.FormatNumber(stats.SessionCount)),
		accentStyle.Render(cli.FormatNumber(stats.MessageCount)),
		cli.FormatTokens(stats.TotalInputTokens),
		cli.FormatTokens(stats.TotalOutputTokens),
		cli.FormatCost(stats.TotalInputCost+stats.TotalOutputCost),
	)

	streak := fmt.Sprintf("  streak %s (longest %d, %d active days)",
		accentStyle.Render(fmt.Sprintf("%d", a.report.Streak.CurrentStreak)),
		a.report.Streak.LongestStreak,
		a.report.Streak.TotalActiveDays,
	)

	return line + "\n" + streak + "\n"
}

func (a App) viewSessions() string {
	if len(a.report.Sessions) == 0 {
		return mutedStyle.Render("  No sessions recorded today.\n")
	}

	var b strings.Builder
	for i, entry := range a.report.Sessions {
		sess := entry.Session

		star := " "
		if sess.IsBookmarked {
			star = starStyle.Render("★")
		}

		project := "-"
		if sess.ProjectName != nil {
			project = cli.Truncate(*sess.ProjectName, 18)
		}

		title := "(no summary)"
		if sess.Summary != nil {
			title = cli.Truncate(*sess.Summary, 56)
		}

		length := "open"
		if sess.EndedAt != nil {
			length = cli.FormatDuration(int64(sess.Duration().Seconds()))
		}

		line := fmt.Sprintf(" %s %s %-18s %-56s %s",
			star, sess.StartedAt.Format("15:04"), project, title, length)

		if i == a.cursor {
			b.WriteString(selectedStyle.Render(">" + line))
		} else {
			b.WriteString(dimStyle.Render(" ") + line)
		}
		b.WriteString("\n")

		if i == a.cursor && entry.Insight != nil {
			b.WriteString(mutedStyle.Render("      ▸ " + cli.Truncate(entry.Insight.Summary, 72)))
			b.WriteString("\n")
		}
	}
	return b.String()
}
