package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/model"
)

func TestEstimateQuota_RollingWindow(t *testing.T) {
	now := wed
	events := []model.Event{
		prompt(now.Add(-6*time.Hour), "s1", sonnet),
		prompt(now.Add(-3*time.Hour), "s1", sonnet),
		prompt(now.Add(-1*time.Hour), "s1", sonnet),
	}

	q := estimateQuota(events, testQuota(), now)
	if q.MessagesInWindow != 2 {
		t.Errorf("MessagesInWindow = %d, want 2", q.MessagesInWindow)
	}
	if q.EstimatedLimit != 225 {
		t.Errorf("EstimatedLimit = %d, want 225", q.EstimatedLimit)
	}
	if math.Abs(q.UsagePercent-0.888) > 0.01 {
		t.Errorf("UsagePercent = %.3f, want ~0.89", q.UsagePercent)
	}
	if q.WindowHours != 5 || q.Plan != config.PlanMax5x {
		t.Errorf("WindowHours/Plan = %d/%s, want 5/%s", q.WindowHours, q.Plan, config.PlanMax5x)
	}
}

func TestEstimateQuota_IgnoresNonPrompts(t *testing.T) {
	ev := prompt(wed.Add(-time.Hour), "s1", sonnet)
	ev.IsPrompt = false
	asst := model.Event{Timestamp: wed.Add(-time.Hour), Role: model.RoleAssistant, Model: opus}

	q := estimateQuota([]model.Event{ev, asst}, testQuota(), wed)
	if q.MessagesInWindow != 0 || q.UsagePercent != 0 {
		t.Errorf("quota = %+v, want zero usage", q)
	}
	if q.Tier != string(config.TierSonnet) {
		t.Errorf("Tier = %s, want sonnet for an empty window", q.Tier)
	}
}

func TestEstimateQuota_Clamped(t *testing.T) {
	var events []model.Event
	for i := range 60 {
		events = append(events, prompt(wed.Add(-time.Duration(i)*time.Minute), "s1", opus))
	}
	q := estimateQuota(events, testQuota(), wed)
	if q.UsagePercent != 100 {
		t.Errorf("UsagePercent = %v, want 100", q.UsagePercent)
	}
	if q.Tier != string(config.TierOpus) || q.EstimatedLimit != 45 {
		t.Errorf("Tier/Limit = %s/%d, want opus/45", q.Tier, q.EstimatedLimit)
	}
}

func TestDominantTier(t *testing.T) {
	limits := config.DefaultPlans[config.PlanMax5x]
	tests := []struct {
		name   string
		counts map[config.Tier]int
		want   config.Tier
	}{
		{"empty", nil, config.TierSonnet},
		{"most prompts", map[config.Tier]int{config.TierHaiku: 3, config.TierSonnet: 1}, config.TierHaiku},
		{"tie picks smaller limit", map[config.Tier]int{config.TierOpus: 2, config.TierSonnet: 2}, config.TierOpus},
		{"tie sonnet haiku", map[config.Tier]int{config.TierHaiku: 4, config.TierSonnet: 4}, config.TierSonnet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dominantTier(tt.counts, limits); got != tt.want {
				t.Errorf("dominantTier = %s, want %s", got, tt.want)
			}
		})
	}
}
