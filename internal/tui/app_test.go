package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/model"
)

func sampleStats(p model.Period) model.UsageStats {
	return model.UsageStats{
		Period:       p,
		TotalTokens:  1_500_000,
		TotalCostUSD: 12.5,
		SessionCount: 3,
		MessageCount: 42,
		ByModel: []model.ModelUsage{
			{Model: "claude-opus-4-6", DisplayName: "Opus 4.6", TotalTokens: 1_000_000, CostUSD: 10, Messages: 20},
			{Model: "claude-sonnet-4-5", DisplayName: "Sonnet 4.5", TotalTokens: 500_000, CostUSD: 2.5, Messages: 22},
		},
		Quota: model.QuotaInfo{WindowHours: 5, MessagesInWindow: 9, EstimatedLimit: 45, UsagePercent: 20, Plan: "max5x", Tier: "opus"},
		ActiveSessions: []model.ActiveSession{
			{SessionID: "abc", Project: "ccmeter", ModelDisplayName: "Opus 4.6", DurationMinutes: 42, TotalTokens: 9000, CostUSD: 0.4, ContextRemainingPercent: 60},
		},
	}
}

func fixedFetcher(calls *[]model.Period) Fetcher {
	return func(_ context.Context, p model.Period) (model.UsageStats, error) {
		*calls = append(*calls, p)
		return sampleStats(p), nil
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, a App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	m, cmd := a.Update(msg)
	next, ok := m.(App)
	if !ok {
		t.Fatalf("Update returned %T", m)
	}
	return next, cmd
}

func loadedApp(t *testing.T, fetch Fetcher) App {
	t.Helper()
	a := NewApp(fetch, model.PeriodWeek, 0)
	a, _ = update(t, a, tea.WindowSizeMsg{Width: 120, Height: 40})
	a, _ = update(t, a, StatsMsg{Stats: sampleStats(model.PeriodWeek)})
	return a
}

func TestApp_StatsMsgLoads(t *testing.T) {
	var calls []model.Period
	a := loadedApp(t, fixedFetcher(&calls))
	if !a.loaded || a.refreshing {
		t.Fatalf("loaded=%v refreshing=%v, want true/false", a.loaded, a.refreshing)
	}
	if !strings.Contains(a.View(), "Tokens") {
		t.Error("overview should show the tokens card")
	}
}

func TestApp_FetchErrorKeepsLastStats(t *testing.T) {
	var calls []model.Period
	a := loadedApp(t, fixedFetcher(&calls))
	a, _ = update(t, a, StatsMsg{Err: errors.New("boom")})
	if a.stats.TotalTokens != 1_500_000 {
		t.Errorf("stats replaced on error: %+v", a.stats)
	}
	if !strings.Contains(a.View(), "refresh failed") {
		t.Error("status bar should report the failure")
	}
}

func TestApp_PeriodKeyCyclesAndFetches(t *testing.T) {
	var calls []model.Period
	a := loadedApp(t, fixedFetcher(&calls))

	a, cmd := update(t, a, key("p"))
	if a.period != model.PeriodMonth {
		t.Errorf("period = %s, want month", a.period)
	}
	if cmd == nil || !a.refreshing {
		t.Fatal("period change should start a fetch")
	}

	// A second request while one is in flight is ignored.
	_, cmd = update(t, a, key("r"))
	if cmd != nil {
		t.Error("refresh while refreshing should be a no-op")
	}
}

func TestApp_StaleResultRefetchesCurrentPeriod(t *testing.T) {
	var calls []model.Period
	a := loadedApp(t, fixedFetcher(&calls))

	a, _ = update(t, a, key("p")) // month fetch in flight
	a, cmd := update(t, a, key("p"))
	if a.period != model.PeriodAll || cmd != nil {
		t.Fatalf("period = %s, fetch queued = %v; want all with no second fetch", a.period, cmd != nil)
	}

	a, cmd = update(t, a, StatsMsg{Period: model.PeriodMonth, Stats: sampleStats(model.PeriodMonth)})
	if a.stats.Period != model.PeriodWeek {
		t.Errorf("month result applied under %s header", a.period)
	}
	if !a.refreshing || cmd == nil {
		t.Fatal("stale result should trigger a fetch for the current period")
	}

	msg := cmd()
	sm, ok := msg.(StatsMsg)
	if !ok || sm.Period != model.PeriodAll {
		t.Fatalf("refetch returned %#v, want StatsMsg for all", msg)
	}
	a, _ = update(t, a, sm)
	if a.stats.Period != model.PeriodAll || a.refreshing {
		t.Errorf("stats period = %s refreshing = %v, want all/false", a.stats.Period, a.refreshing)
	}
}

func TestApp_FetchCmdUsesPeriod(t *testing.T) {
	var calls []model.Period
	msg := fetchCmd(fixedFetcher(&calls), model.PeriodToday)()
	sm, ok := msg.(StatsMsg)
	if !ok {
		t.Fatalf("fetchCmd returned %T", msg)
	}
	if sm.Period != model.PeriodToday || sm.Stats.Period != model.PeriodToday || len(calls) != 1 {
		t.Errorf("got period %s after %d calls", sm.Stats.Period, len(calls))
	}
}

func TestApp_TabKeys(t *testing.T) {
	var calls []model.Period
	a := loadedApp(t, fixedFetcher(&calls))

	tests := []struct {
		key  string
		want int
	}{
		{"s", 2},
		{"m", 1},
		{"right", 2},
		{"a", 3},
		{"right", 0},
		{"left", 3},
	}
	for _, tt := range tests {
		a, _ = update(t, a, key(tt.key))
		if a.activeTab != tt.want {
			t.Fatalf("after %q activeTab = %d, want %d", tt.key, a.activeTab, tt.want)
		}
	}
}

func TestApp_TabsRender(t *testing.T) {
	var calls []model.Period
	a := loadedApp(t, fixedFetcher(&calls))

	tests := []struct {
		key, want string
	}{
		{"m", "Opus 4.6"},
		{"s", "ccmeter"},
		{"a", "Prompts per day"},
		{"o", "Quota estimate"},
	}
	for _, tt := range tests {
		a, _ = update(t, a, key(tt.key))
		if view := a.View(); !strings.Contains(view, tt.want) {
			t.Errorf("tab %q view missing %q", tt.key, tt.want)
		}
	}
}

func TestApp_HelpToggle(t *testing.T) {
	var calls []model.Period
	a := loadedApp(t, fixedFetcher(&calls))
	a, _ = update(t, a, key("?"))
	if !strings.Contains(a.View(), "Keyboard Shortcuts") {
		t.Error("help overlay not shown")
	}
	a, _ = update(t, a, key("x"))
	if a.showHelp {
		t.Error("any key should dismiss help")
	}
}

func TestApp_TickSkipsWhileRefreshing(t *testing.T) {
	var calls []model.Period
	a := NewApp(fixedFetcher(&calls), model.PeriodWeek, time.Minute)
	a, cmd := update(t, a, tickMsg{})
	if cmd == nil {
		t.Fatal("tick should reschedule itself")
	}
	if !a.refreshing {
		t.Error("refreshing should stay set")
	}
}

func TestNextPeriod(t *testing.T) {
	if got := nextPeriod(model.PeriodAll); got != model.PeriodToday {
		t.Errorf("nextPeriod(all) = %s, want today", got)
	}
	if got := nextPeriod(model.PeriodRange); got != model.PeriodWeek {
		t.Errorf("nextPeriod(range) = %s, want week", got)
	}
}

func TestSetupValuesApply(t *testing.T) {
	cfg := config.DefaultConfig()
	v := ValuesFromConfig(cfg)
	v.Plan = config.PlanPro
	v.Roots = " /a/projects , ,/b/projects"
	v.Theme = "tokyo-night"
	v.Threshold = "85%"

	got, err := v.Apply(cfg)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.Quota.Plan != config.PlanPro || got.Appearance.Theme != "tokyo-night" {
		t.Errorf("plan/theme = %s/%s", got.Quota.Plan, got.Appearance.Theme)
	}
	if len(got.General.Roots) != 2 || got.General.Roots[1] != "/b/projects" {
		t.Errorf("roots = %v", got.General.Roots)
	}
	if got.Daemon.NotifyThreshold != 85 {
		t.Errorf("threshold = %v, want 85", got.Daemon.NotifyThreshold)
	}

	v.Threshold = "250"
	if _, err := v.Apply(cfg); err == nil {
		t.Error("threshold above 100 should be rejected")
	}
}
