// Package tui provides the interactive Bubble Tea dashboard for ccmeter.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/ccmeter/internal/cli"
	"github.com/theirongolddev/ccmeter/internal/model"
	"github.com/theirongolddev/ccmeter/internal/tui/components"
	"github.com/theirongolddev/ccmeter/internal/tui/theme"
)

// Fetcher returns a fresh snapshot for a period. daemon.Refresher.Usage
// satisfies it.
type Fetcher func(ctx context.Context, p model.Period) (model.UsageStats, error)

// StatsMsg carries the result of one fetch. Period is the period that was
// requested.
type StatsMsg struct {
	Period   model.Period
	Stats    model.UsageStats
	Err      error
	LoadTime time.Duration
}

type tickMsg struct{}

// periods are cycled with the p key.
var periods = []model.Period{model.PeriodToday, model.PeriodWeek, model.PeriodMonth, model.PeriodAll}

const (
	minTerminalWidth = 60
	maxContentWidth  = 140
	minContentHeight = 5
	fetchTimeout     = 30 * time.Second
)

// App is the root Bubble Tea model.
type App struct {
	fetch    Fetcher
	interval time.Duration
	period   model.Period

	// Data
	stats    model.UsageStats
	loaded   bool
	err      error
	loadTime time.Duration

	refreshing  bool
	lastRefresh time.Time

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	spinner   spinner.Model
}

// NewApp creates the dashboard. interval is the auto-refresh cadence; zero
// disables it.
func NewApp(fetch Fetcher, period model.Period, interval time.Duration) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	if period == "" {
		period = model.PeriodWeek
	}
	return App{
		fetch:      fetch,
		interval:   interval,
		period:     period,
		spinner:    sp,
		refreshing: true,
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spinner.Tick, fetchCmd(a.fetch, a.period)}
	if a.interval > 0 {
		cmds = append(cmds, tickCmd(a.interval))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case StatsMsg:
		if msg.Period != "" && msg.Period != a.period {
			// The period changed while this fetch was in flight.
			return a, fetchCmd(a.fetch, a.period)
		}
		a.refreshing = false
		a.lastRefresh = time.Now()
		a.loadTime = msg.LoadTime
		a.err = msg.Err
		if msg.Err == nil {
			a.stats = msg.Stats
			a.loaded = true
		}
		return a, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(a.interval)}
		if !a.refreshing {
			a.refreshing = true
			cmds = append(cmds, fetchCmd(a.fetch, a.period))
		}
		return a, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		return a.updateKey(msg)
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" || key == "q" {
		return a, tea.Quit
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "r":
		return a.refresh()
	case "p":
		a.period = nextPeriod(a.period)
		return a.refresh()
	case "left", "h":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		return a, nil
	case "right", "l", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	}

	if runes := msg.Runes; len(runes) == 1 {
		if idx := components.TabIdxByKey(runes[0]); idx >= 0 {
			a.activeTab = idx
		}
	}
	return a, nil
}

func (a App) refresh() (tea.Model, tea.Cmd) {
	if a.refreshing {
		return a, nil
	}
	a.refreshing = true
	return a, tea.Batch(a.spinner.Tick, fetchCmd(a.fetch, a.period))
}

func nextPeriod(p model.Period) model.Period {
	for i, q := range periods {
		if q == p {
			return periods[(i+1)%len(periods)]
		}
	}
	return model.PeriodWeek
}

func fetchCmd(fetch Fetcher, p model.Period) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		stats, err := fetch(ctx, p)
		return StatsMsg{Period: p, Stats: stats, Err: err, LoadTime: time.Since(start)}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return tickMsg{} })
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  ccmeter needs at least %d columns.\n",
			a.width, minTerminalWidth)
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewLoading() string {
	t := theme.Active
	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Padding(1, 3)
	logoStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	subtitleStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ ccmeter"))
	b.WriteString(subtitleStyle.Render(" · Claude Code usage"))
	b.WriteString("\n\n")
	if a.err != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(t.Red).Render("Load failed: " + a.err.Error()))
		b.WriteString("\n")
		b.WriteString(subtitleStyle.Render("[r] retry  [q] quit"))
	} else {
		b.WriteString(a.spinner.View())
		b.WriteString(subtitleStyle.Render(" Reading conversation logs..."))
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()))
}

func (a App) viewHelp() string {
	t := theme.Active
	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Padding(1, 3)
	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")
	bindings := []struct{ key, desc string }{
		{"o m s a", "Jump to tab"},
		{"← →", "Previous / Next tab"},
		{"p", "Cycle period (today, week, month, all)"},
		{"r", "Refresh now"},
		{"?", "Toggle help"},
		{"q", "Quit"},
	}
	for _, bind := range bindings {
		fmt.Fprintf(&b, "  %s  %s\n",
			keyStyle.Render(fmt.Sprintf("%-8s", bind.key)),
			descStyle.Render(bind.desc))
	}
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(t.TextDim).Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()))
}

func (a App) viewMain() string {
	t := theme.Active
	cw := a.contentWidth()

	periodStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	header := components.RenderTabBar(a.activeTab) + "   " + periodStyle.Render(a.period.Label())

	status := fmt.Sprintf("updated %s in %.1fs", cli.FormatAgo(a.lastRefresh), a.loadTime.Seconds())
	switch {
	case a.refreshing:
		status = a.spinner.View() + " refreshing"
	case a.err != nil:
		status = "refresh failed: " + a.err.Error()
	}
	statusBar := components.RenderStatusBar(a.width, status)

	contentH := max(a.height-lipgloss.Height(header)-lipgloss.Height(statusBar)-1, minContentHeight)

	var content string
	switch a.activeTab {
	case 0:
		content = a.renderOverview(cw)
	case 1:
		content = a.renderModels(cw)
	case 2:
		content = a.renderSessions(cw)
	case 3:
		content = a.renderActivity(cw)
	}
	content = padHeight(truncateHeight(content, contentH), contentH)

	return lipgloss.JoinVertical(lipgloss.Left, header, "", content, statusBar)
}

func (a App) renderOverview(cw int) string {
	s := a.stats
	q := s.Quota

	cards := components.MetricCardRow([]components.Metric{
		{Label: "Tokens", Value: cli.FormatTokens(s.TotalTokens)},
		{Label: "Cost", Value: cli.FormatCost(s.TotalCostUSD)},
		{Label: "Sessions", Value: cli.FormatNumber(int64(s.SessionCount))},
		{Label: "Messages", Value: cli.FormatNumber(int64(s.MessageCount))},
	}, cw)

	barW := max(cw-36, 10)
	var b strings.Builder
	windowLabel := fmt.Sprintf("%dh window", q.WindowHours)
	b.WriteString(components.RateLimitBar(windowLabel, q.UsagePercent/100, time.Time{}, 12, barW))
	fmt.Fprintf(&b, "\n%s\n", cli.Muted(fmt.Sprintf("%12s %d of ~%d prompts (%s plan, %s)",
		"", q.MessagesInWindow, q.EstimatedLimit, q.Plan, q.Tier)))

	resetAt := resetTime(s.WeeklyUsage.ResetDate)
	b.WriteString(components.RateLimitBar("Week", q.WeekUsagePercent/100, resetAt, 12, barW))
	b.WriteString("\n")
	quota := components.ContentCard("Quota estimate", b.String(), cw)

	return lipgloss.JoinVertical(lipgloss.Left, cards, quota, a.renderWeek(cw))
}

func (a App) renderWeek(cw int) string {
	t := theme.Active
	w := a.stats.WeeklyUsage
	todayStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	futureStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	var names, counts []string
	for _, d := range w.Days {
		name := fmt.Sprintf("%6s", d.DayName)
		count := fmt.Sprintf("%6d", d.PromptCount)
		switch {
		case d.IsToday:
			name, count = todayStyle.Render(name), todayStyle.Render(count)
		case d.IsFuture:
			name, count = futureStyle.Render(name), futureStyle.Render(fmt.Sprintf("%6s", "·"))
		}
		names = append(names, name)
		counts = append(counts, count)
	}
	body := strings.Join(names, "") + "\n" + strings.Join(counts, "") + "\n" +
		cli.Muted(fmt.Sprintf("resets %s (%d days)", w.ResetDate, w.DaysUntilReset))
	return components.ContentCard("This week", body, cw)
}

func (a App) renderModels(cw int) string {
	s := a.stats
	if len(s.ByModel) == 0 {
		return components.ContentCard("Models", cli.Muted("No assistant usage in this period."), cw)
	}
	var peak int64
	for _, m := range s.ByModel {
		peak = max(peak, m.TotalTokens)
	}

	inner := components.CardInnerWidth(cw)
	barW := max(inner-44, 10)
	var b strings.Builder
	for _, m := range s.ByModel {
		filled := 0
		if peak > 0 {
			filled = int(float64(m.TotalTokens) / float64(peak) * float64(barW))
		}
		fmt.Fprintf(&b, "%-18s %s%s %8s %8s %6d msgs\n",
			truncStr(m.DisplayName, 18),
			cli.Tokens(strings.Repeat("█", filled)),
			cli.Muted(strings.Repeat("·", barW-filled)),
			cli.FormatTokens(m.TotalTokens),
			cli.FormatCost(m.CostUSD),
			m.Messages)
	}
	return components.ContentCard("Models · "+s.Period.Label(), b.String(), cw)
}

func (a App) renderSessions(cw int) string {
	sessions := a.stats.ActiveSessions
	if len(sessions) == 0 {
		return components.ContentCard("Active sessions", cli.Muted("No sessions active in the last 24 hours."), cw)
	}

	inner := components.CardInnerWidth(cw)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", cli.Muted(fmt.Sprintf("%-20s %-14s %8s %8s %8s %5s  %s",
		"Project", "Model", "Duration", "Tokens", "Cost", "Todos", "Context used")))
	for _, s := range sessions {
		used := 1 - s.ContextRemainingPercent/100
		fmt.Fprintf(&b, "%-20s %-14s %8s %8s %8s %5d  %s\n",
			truncStr(s.Project, 20),
			truncStr(s.ModelDisplayName, 14),
			cli.FormatMinutes(s.DurationMinutes),
			cli.FormatTokens(s.TotalTokens),
			cli.FormatCost(s.CostUSD),
			s.TodoCount,
			components.CompactRateBar("", used, max(inner-72, 12)))
	}
	return components.ContentCard("Active sessions", b.String(), cw)
}

func (a App) renderActivity(cw int) string {
	days := a.stats.DailyActivity
	heat := components.ContentCard("Prompts per day", cli.RenderHeatmap(days), cw)

	// Chart the trailing two weeks up to today.
	today := time.Now().Format("2006-01-02")
	var recent []float64
	for _, d := range days {
		if d.Date > today {
			break
		}
		recent = append(recent, float64(d.PromptCount))
	}
	if len(recent) > 14 {
		recent = recent[len(recent)-14:]
	}
	if len(recent) < 2 {
		return heat
	}
	chart := components.ContentCard("Last 14 days", cli.RenderChart(recent, 6, ""), cw)
	return lipgloss.JoinVertical(lipgloss.Left, heat, chart)
}

// resetTime parses a local YYYY-MM-DD reset date; zero on failure.
func resetTime(date string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}
