package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/tui/theme"
)

// SetupValues are the answers collected by the setup form.
type SetupValues struct {
	Plan      string
	Roots     string // comma separated
	Theme     string
	Threshold string // percent, empty disables alerts
}

// ValuesFromConfig seeds the form with the current settings.
func ValuesFromConfig(cfg config.Config) SetupValues {
	v := SetupValues{
		Plan:  cfg.Quota.Plan,
		Roots: strings.Join(cfg.General.Roots, ", "),
		Theme: cfg.Appearance.Theme,
	}
	if cfg.Daemon.NotifyThreshold > 0 {
		v.Threshold = strconv.FormatFloat(cfg.Daemon.NotifyThreshold, 'f', -1, 64)
	}
	return v
}

// Apply writes the answers into cfg.
func (v SetupValues) Apply(cfg config.Config) (config.Config, error) {
	cfg.Quota.Plan = v.Plan

	var roots []string
	for _, r := range strings.Split(v.Roots, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roots = append(roots, r)
		}
	}
	if len(roots) > 0 {
		cfg.General.Roots = roots
	}

	cfg.Appearance.Theme = theme.ByName(v.Theme).Name

	cfg.Daemon.NotifyThreshold = 0
	if s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v.Threshold), "%")); s != "" {
		pct, err := validThreshold(s)
		if err != nil {
			return cfg, err
		}
		cfg.Daemon.NotifyThreshold = pct
	}
	return cfg, nil
}

func validThreshold(s string) (float64, error) {
	pct, err := strconv.ParseFloat(s, 64)
	if err != nil || pct <= 0 || pct > 100 {
		return 0, fmt.Errorf("threshold must be a percentage between 0 and 100, got %q", s)
	}
	return pct, nil
}

// NewSetupForm builds the first-run wizard bound to v.
func NewSetupForm(v *SetupValues) *huh.Form {
	planOpts := []huh.Option[string]{huh.NewOption("Detect from ~/.claude.json", "")}
	for _, name := range []string{config.PlanPro, config.PlanMax5x, config.PlanMax20x} {
		planOpts = append(planOpts, huh.NewOption(config.DefaultPlans[name].DisplayName, name))
	}

	themeOpts := make([]huh.Option[string], 0, len(theme.All))
	for _, name := range theme.Names() {
		themeOpts = append(themeOpts, huh.NewOption(name, name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Subscription plan").
				Description("Sets the prompt allowance used for quota estimates.").
				Options(planOpts...).
				Value(&v.Plan),
			huh.NewInput().
				Title("Log directories").
				Description("Comma separated. Claude Code writes to ~/.claude/projects.").
				Value(&v.Roots),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&v.Theme),
			huh.NewInput().
				Title("Desktop alert threshold (%)").
				Description("Leave blank to disable usage alerts.").
				Placeholder("80").
				Value(&v.Threshold).
				Validate(func(s string) error {
					s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
					if s == "" {
						return nil
					}
					_, err := validThreshold(s)
					return err
				}),
		),
	).WithTheme(huh.ThemeCharm())
}

// RunSetup runs the wizard in the terminal and returns the updated config.
// It does not save.
func RunSetup(cfg config.Config) (config.Config, error) {
	v := ValuesFromConfig(cfg)
	if err := NewSetupForm(&v).Run(); err != nil {
		return cfg, err
	}
	return v.Apply(cfg)
}
