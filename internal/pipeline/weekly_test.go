package pipeline

import (
	"testing"
	"time"

	"github.com/theirongolddev/ccmeter/internal/model"
)

func TestWeeklyUsage_Wednesday(t *testing.T) {
	events := []model.Event{
		prompt(time.Date(2025, 6, 1, 9, 0, 0, 0, est), "s1", sonnet),  // Sunday
		prompt(time.Date(2025, 6, 4, 10, 0, 0, 0, est), "s1", sonnet), // today
		prompt(time.Date(2025, 6, 4, 11, 0, 0, 0, est), "s1", sonnet),
		prompt(time.Date(2025, 5, 31, 23, 0, 0, 0, est), "s1", sonnet), // previous week
	}
	byDay := promptsByDay(events, est)
	wu, pct := weeklyUsage(byDay, 300, wed)

	if len(wu.Days) != 7 {
		t.Fatalf("len(Days) = %d, want 7", len(wu.Days))
	}
	if wu.Days[0].DayName != "Sun" || wu.Days[0].Date != "2025-06-01" {
		t.Errorf("first day = %+v, want Sunday 2025-06-01", wu.Days[0])
	}
	if wu.WeekStart != "2025-06-01" {
		t.Errorf("WeekStart = %s, want 2025-06-01", wu.WeekStart)
	}

	today := 0
	for i, d := range wu.Days {
		if d.IsToday {
			today++
			if i != 3 {
				t.Errorf("IsToday at index %d, want 3", i)
			}
		}
		if d.IsFuture != (i > 3) {
			t.Errorf("Days[%d].IsFuture = %v", i, d.IsFuture)
		}
	}
	if today != 1 {
		t.Errorf("IsToday count = %d, want 1", today)
	}
	if wu.Days[0].PromptCount != 1 || wu.Days[3].PromptCount != 2 {
		t.Errorf("counts = %d/%d, want 1/2", wu.Days[0].PromptCount, wu.Days[3].PromptCount)
	}
	if pct != 1 {
		t.Errorf("week percent = %v, want 1", pct)
	}
	if wu.ResetDate != "2025-06-08" || wu.DaysUntilReset != 4 {
		t.Errorf("reset = %s in %d days, want 2025-06-08 in 4", wu.ResetDate, wu.DaysUntilReset)
	}
}

func TestWeeklyUsage_SundayResetsNextWeek(t *testing.T) {
	sunday := time.Date(2025, 6, 8, 8, 0, 0, 0, est)
	wu, _ := weeklyUsage(nil, 100, sunday)
	if wu.ResetDate != "2025-06-15" || wu.DaysUntilReset != 7 {
		t.Errorf("reset = %s in %d days, want 2025-06-15 in 7", wu.ResetDate, wu.DaysUntilReset)
	}
	if !wu.Days[0].IsToday {
		t.Error("Sunday entry should be today")
	}
}

func TestWeeklyUsage_ZeroLimit(t *testing.T) {
	byDay := map[string]int{"2025-06-02": 5}
	_, pct := weeklyUsage(byDay, 0, wed)
	if pct != 0 {
		t.Errorf("percent = %v, want 0", pct)
	}
}
