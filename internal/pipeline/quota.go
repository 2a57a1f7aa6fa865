package pipeline

import (
	"math"
	"time"

	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/model"
)

// QuotaSettings are the plan constants the estimator works from.
type QuotaSettings struct {
	Plan        string
	Limits      config.PlanLimits
	WindowHours int
}

// estimateQuota counts prompts in [now-window, now] and compares them with
// the plan allowance of the dominant model tier. The result is a heuristic.
func estimateQuota(events []model.Event, q QuotaSettings, now time.Time) model.QuotaInfo {
	hours := q.WindowHours
	if hours <= 0 {
		hours = 5
	}
	from := now.Add(-time.Duration(hours) * time.Hour)

	byTier := make(map[config.Tier]int)
	n := 0
	for _, ev := range events {
		if !ev.IsPrompt || ev.Timestamp.Before(from) || ev.Timestamp.After(now) {
			continue
		}
		n++
		byTier[config.TierOf(ev.Model)]++
	}

	tier := dominantTier(byTier, q.Limits)
	limit := q.Limits.Limit(tier)

	info := model.QuotaInfo{
		MessagesInWindow: n,
		WindowHours:      hours,
		EstimatedLimit:   limit,
		Plan:             q.Plan,
		Tier:             string(tier),
		WeekLimitHours:   q.Limits.WeekLimitHours,
	}
	if limit > 0 {
		info.UsagePercent = math.Min(100, 100*float64(n)/float64(limit))
	}
	return info
}

// dominantTier picks the tier with the most prompts; ties go to the tier with
// the smaller allowance. No prompts means sonnet.
func dominantTier(counts map[config.Tier]int, limits config.PlanLimits) config.Tier {
	best := config.TierSonnet
	bestN := 0
	for _, t := range []config.Tier{config.TierOpus, config.TierSonnet, config.TierHaiku} {
		c := counts[t]
		if c == 0 {
			continue
		}
		if c > bestN || (c == bestN && limits.Limit(t) < limits.Limit(best)) {
			best, bestN = t, c
		}
	}
	return best
}
