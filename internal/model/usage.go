package model

import (
	"fmt"
	"strings"
	"time"
)

// Period names a reporting window relative to the local calendar.
type Period string

// Supported periods.
const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
	PeriodRange Period = "range"
)

// ParsePeriod accepts today, week, month and all (case-insensitive).
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodAll:
		return p, nil
	case "":
		return PeriodWeek, nil
	default:
		return "", fmt.Errorf("unknown period %q (want today, week, month or all)", s)
	}
}

// Label returns a human-readable period name.
func (p Period) Label() string {
	switch p {
	case PeriodToday:
		return "Today"
	case PeriodWeek:
		return "This week"
	case PeriodMonth:
		return "This month"
	case PeriodAll:
		return "All time"
	default:
		return "Custom range"
	}
}

// Window is a half-open time interval [From, To). A zero bound is unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside w.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// ModelUsage is the per-model slice of a period's totals.
type ModelUsage struct {
	Model       string     `json:"model"`
	DisplayName string     `json:"display_name"`
	Tokens      TokenUsage `json:"tokens"`
	TotalTokens int64      `json:"total_tokens"`
	CostUSD     float64    `json:"cost_usd"`
	Messages    int        `json:"messages"`
}

// QuotaInfo is the rolling-window estimate. Figures are heuristics derived
// from prompt counts, not the provider's accounting.
type QuotaInfo struct {
	MessagesInWindow int     `json:"messages_in_window"`
	WindowHours      int     `json:"window_hours"`
	EstimatedLimit   int     `json:"estimated_limit"`
	UsagePercent     float64 `json:"usage_percent"`
	Plan             string  `json:"plan"`
	Tier             string  `json:"tier"`
	WeekUsagePercent float64 `json:"week_usage_percent"`
	WeekLimitHours   int     `json:"week_limit_hours"`
}

// DailyActivity is the prompt count for one local calendar date.
type DailyActivity struct {
	Date        string `json:"date"`
	PromptCount int    `json:"prompt_count"`
}

// WeekDay is one column of the current week.
type WeekDay struct {
	Date        string `json:"date"`
	DayName     string `json:"day_name"`
	PromptCount int    `json:"prompt_count"`
	IsToday     bool   `json:"is_today"`
	IsFuture    bool   `json:"is_future"`
}

// WeeklyUsage covers Sunday through Saturday of the current week.
type WeeklyUsage struct {
	Days                 []WeekDay `json:"days"`
	WeekStart            string    `json:"week_start"`
	EstimatedWeeklyLimit int       `json:"estimated_weekly_limit"`
	ResetDate            string    `json:"reset_date"`
	DaysUntilReset       int       `json:"days_until_reset"`
}

// ActiveSession is the presentation view of a recently active Session.
type ActiveSession struct {
	SessionID               string    `json:"session_id"`
	Project                 string    `json:"project"`
	Directory               string    `json:"directory"`
	FirstActivity           time.Time `json:"first_activity"`
	LastActivity            time.Time `json:"last_activity"`
	DurationMinutes         int64     `json:"duration_minutes"`
	MessageCount            int       `json:"message_count"`
	TotalTokens             int64     `json:"total_tokens"`
	CostUSD                 float64   `json:"cost_usd"`
	Model                   string    `json:"model"`
	ModelDisplayName        string    `json:"model_display_name"`
	ContextRemainingPercent float64   `json:"context_remaining_percent"`
	TodoCount               int       `json:"todo_count"`
}

// UsageStats is the full snapshot returned for a period query.
type UsageStats struct {
	Period         Period          `json:"period"`
	TotalTokens    int64           `json:"total_tokens"`
	Tokens         TokenUsage      `json:"tokens"`
	TotalCostUSD   float64         `json:"total_cost_usd"`
	ByModel        []ModelUsage    `json:"by_model"`
	SessionCount   int             `json:"session_count"`
	MessageCount   int             `json:"message_count"`
	Quota          QuotaInfo       `json:"quota"`
	ActiveSessions []ActiveSession `json:"active_sessions"`
	DailyActivity  []DailyActivity `json:"daily_activity"`
	WeeklyUsage    WeeklyUsage     `json:"weekly_usage"`
	LastUpdated    time.Time       `json:"last_updated"`
}

// Summary is the lightweight view for tray-style consumers.
type Summary struct {
	WeekUsagePercent float64 `json:"week_usage_percent"`
	DaysUntilReset   int     `json:"days_left_until_reset"`
}
