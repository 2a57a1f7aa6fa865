package pipeline

import (
	"time"

	"github.com/theirongolddev/ccmeter/internal/model"
)

// promptsByDay counts prompts per local calendar date.
func promptsByDay(events []model.Event, loc *time.Location) map[string]int {
	out := make(map[string]int)
	for _, ev := range events {
		if ev.IsPrompt {
			out[dayKey(ev.Timestamp, loc)]++
		}
	}
	return out
}

// weeklyUsage lays out Sunday through Saturday of the week containing now and
// returns the share of the weekly allowance used so far.
func weeklyUsage(byDay map[string]int, weeklyLimit int, now time.Time) (model.WeeklyUsage, float64) {
	start := weekStart(now)
	today := startOfDay(now)

	wu := model.WeeklyUsage{
		Days:                 make([]model.WeekDay, 0, 7),
		WeekStart:            start.Format(dayLayout),
		EstimatedWeeklyLimit: weeklyLimit,
		DaysUntilReset:       DaysUntilReset(now),
	}
	wu.ResetDate = today.AddDate(0, 0, wu.DaysUntilReset).Format(dayLayout)

	used := 0
	for i := range 7 {
		d := start.AddDate(0, 0, i)
		key := d.Format(dayLayout)
		wd := model.WeekDay{
			Date:        key,
			DayName:     d.Weekday().String()[:3],
			PromptCount: byDay[key],
			IsToday:     d.Equal(today),
			IsFuture:    d.After(today),
		}
		if !wd.IsFuture {
			used += wd.PromptCount
		}
		wu.Days = append(wu.Days, wd)
	}

	var pct float64
	if weeklyLimit > 0 {
		pct = max(0, 100*float64(used)/float64(weeklyLimit))
	}
	return wu, pct
}
