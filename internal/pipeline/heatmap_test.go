package pipeline

import (
	"testing"
	"time"

	"github.com/theirongolddev/ccmeter/internal/model"
)

func TestDailyActivity_Shape(t *testing.T) {
	events := []model.Event{
		prompt(time.Date(2025, 6, 3, 12, 0, 0, 0, est), "s1", sonnet),
		prompt(time.Date(2025, 3, 16, 1, 0, 0, 0, est), "s1", sonnet),
		prompt(time.Date(2025, 3, 15, 23, 0, 0, 0, est), "s1", sonnet), // before the grid
	}
	days := dailyActivity(promptsByDay(events, est), wed)

	if len(days) != HeatmapDays {
		t.Fatalf("len = %d, want %d", len(days), HeatmapDays)
	}
	if days[0].Date != "2025-03-16" {
		t.Errorf("first = %s, want 2025-03-16", days[0].Date)
	}
	if last := days[len(days)-1].Date; last != "2025-06-07" {
		t.Errorf("last = %s, want Saturday 2025-06-07", last)
	}

	prev, _ := time.ParseInLocation(dayLayout, days[0].Date, est)
	for _, d := range days[1:] {
		cur, err := time.ParseInLocation(dayLayout, d.Date, est)
		if err != nil {
			t.Fatal(err)
		}
		if !cur.Equal(prev.AddDate(0, 0, 1)) {
			t.Fatalf("gap between %s and %s", prev.Format(dayLayout), d.Date)
		}
		prev = cur
	}

	total := 0
	for _, d := range days {
		total += d.PromptCount
	}
	if total != 2 {
		t.Errorf("total prompts = %d, want 2", total)
	}
}

func TestDailyActivity_FutureDatesZero(t *testing.T) {
	byDay := map[string]int{"2025-06-06": 9}
	days := dailyActivity(byDay, wed)
	for _, d := range days {
		if d.Date == "2025-06-06" && d.PromptCount != 0 {
			t.Errorf("future date count = %d, want 0", d.PromptCount)
		}
	}
}
