package pipeline

import (
	"time"

	"github.com/theirongolddev/ccmeter/internal/model"
)

// HeatmapDays is the length of the activity grid: twelve full weeks.
const HeatmapDays = 84

// dailyActivity returns one entry per date for the 84 days ending on the
// Saturday that closes the current week. Dates after today are present with
// a zero count.
func dailyActivity(byDay map[string]int, now time.Time) []model.DailyActivity {
	last := weekStart(now).AddDate(0, 0, 6)
	first := last.AddDate(0, 0, -(HeatmapDays - 1))
	today := startOfDay(now)

	out := make([]model.DailyActivity, 0, HeatmapDays)
	for i := range HeatmapDays {
		d := first.AddDate(0, 0, i)
		key := d.Format(dayLayout)
		n := 0
		if !d.After(today) {
			n = byDay[key]
		}
		out = append(out, model.DailyActivity{Date: key, PromptCount: n})
	}
	return out
}
