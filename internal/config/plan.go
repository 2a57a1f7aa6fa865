package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Tier groups models that share a 5-hour message allowance.
type Tier string

// Model tiers.
const (
	TierOpus   Tier = "opus"
	TierSonnet Tier = "sonnet"
	TierHaiku  Tier = "haiku"
)

// TierOf maps a model id to its quota tier. Unknown models count as sonnet.
func TierOf(model string) Tier {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "opus"):
		return TierOpus
	case strings.Contains(m, "haiku"):
		return TierHaiku
	default:
		return TierSonnet
	}
}

// PlanLimits are approximate allowances observed for a subscription plan.
// They are calibrations, not the provider's published accounting.
type PlanLimits struct {
	DisplayName    string `toml:"display_name,omitempty"`
	Opus           int    `toml:"opus"`
	Sonnet         int    `toml:"sonnet"`
	Haiku          int    `toml:"haiku"`
	WeeklyPrompts  int    `toml:"weekly_prompts"`
	WeekLimitHours int    `toml:"week_limit_hours"`
}

// Limit returns the 5-hour allowance for a tier.
func (p PlanLimits) Limit(t Tier) int {
	switch t {
	case TierOpus:
		return p.Opus
	case TierHaiku:
		return p.Haiku
	default:
		return p.Sonnet
	}
}

// Plan names.
const (
	PlanPro    = "pro"
	PlanMax5x  = "max5x"
	PlanMax20x = "max20x"
)

// DefaultPlans holds the built-in limits per plan.
var DefaultPlans = map[string]PlanLimits{
	PlanPro: {
		DisplayName: "Pro",
		Opus:        9, Sonnet: 45, Haiku: 180,
		WeeklyPrompts: 518, WeekLimitHours: 80,
	},
	PlanMax5x: {
		DisplayName: "Max 5x",
		Opus:        45, Sonnet: 225, Haiku: 900,
		WeeklyPrompts: 2590, WeekLimitHours: 210,
	},
	PlanMax20x: {
		DisplayName: "Max 20x",
		Opus:        180, Sonnet: 900, Haiku: 3600,
		WeeklyPrompts: 10360, WeekLimitHours: 480,
	},
}

// ResolvePlan returns the configured plan, falling back to detection from the
// Claude directory, merged with any [quota.plans.<name>] overrides.
func (c Config) ResolvePlan() (string, PlanLimits) {
	name := normalizePlanName(c.Quota.Plan)
	if name == "" {
		name = DetectPlan(c.General.ClaudeDir).Plan
	}

	limits, ok := DefaultPlans[name]
	if !ok {
		name = PlanMax5x
		limits = DefaultPlans[name]
	}

	if o, ok := c.Quota.Plans[name]; ok {
		if o.DisplayName != "" {
			limits.DisplayName = o.DisplayName
		}
		if o.Opus > 0 {
			limits.Opus = o.Opus
		}
		if o.Sonnet > 0 {
			limits.Sonnet = o.Sonnet
		}
		if o.Haiku > 0 {
			limits.Haiku = o.Haiku
		}
		if o.WeeklyPrompts > 0 {
			limits.WeeklyPrompts = o.WeeklyPrompts
		}
		if o.WeekLimitHours > 0 {
			limits.WeekLimitHours = o.WeekLimitHours
		}
	}
	return name, limits
}

func normalizePlanName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
	switch s {
	case "pro":
		return PlanPro
	case "max", "max5", "max5x":
		return PlanMax5x
	case "max20", "max20x":
		return PlanMax20x
	}
	return s
}

// PlanInfo holds detected Claude subscription plan info.
type PlanInfo struct {
	BillingType string
	Plan        string
}

// DetectPlan reads <claudeDir>/.claude.json to guess the subscription plan.
func DetectPlan(claudeDir string) PlanInfo {
	path := filepath.Join(claudeDir, ".claude.json")
	data, err := os.ReadFile(path) //nolint:gosec // path is constructed from known claudeDir
	if err != nil {
		return PlanInfo{Plan: PlanMax5x}
	}

	var raw struct {
		BillingType string `json:"billingType"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return PlanInfo{Plan: PlanMax5x}
	}

	info := PlanInfo{BillingType: raw.BillingType}
	switch raw.BillingType {
	case "stripe_subscription", "":
		info.Plan = PlanMax5x
	default:
		info.Plan = PlanPro
	}
	return info
}
