// Package cmd implements the ccmeter CLI commands.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ccmeter/internal/cli"
	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	if flagJSON {
		return printJSON(cfg)
	}

	fmt.Printf("  Config file: %s\n", config.Path())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Roots:            %s\n", strings.Join(cfg.General.Roots, ", "))
	fmt.Printf("    Claude directory: %s\n", cfg.General.ClaudeDir)
	fmt.Printf("    Default period:   %s\n", cfg.General.DefaultPeriod)
	fmt.Println()

	plan, limits := cfg.ResolvePlan()
	fmt.Println("  [Quota]")
	if cfg.Quota.Plan == "" {
		fmt.Printf("    Plan:   %s (auto-detected)\n", limits.DisplayName)
	} else {
		fmt.Printf("    Plan:   %s\n", limits.DisplayName)
	}
	fmt.Printf("    Window: %dh\n", cfg.Quota.WindowHours)
	fmt.Printf("    Limits: opus %d, sonnet %d, haiku %d per window; %s prompts per week\n",
		limits.Opus, limits.Sonnet, limits.Haiku, cli.FormatNumber(int64(limits.WeeklyPrompts)))
	fmt.Println(cli.Muted(fmt.Sprintf("    Override with [quota.plans.%s] in the config file.", plan)))
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:   http://%s\n", cfg.Daemon.Addr)
	fmt.Printf("    Refresh:   every %s, debounce %s\n", cfg.Daemon.RefreshInterval, cfg.Daemon.Debounce)
	if cfg.Daemon.NotifyThreshold > 0 {
		fmt.Printf("    Alert at:  %s\n", cli.FormatPercent(cfg.Daemon.NotifyThreshold))
	} else {
		fmt.Println("    Alert at:  disabled")
	}
	fmt.Printf("    Retry:     %d attempts, %s base delay, x%g\n",
		cfg.Daemon.Retry.MaxAttempts, cfg.Daemon.Retry.BaseDelay, cfg.Daemon.Retry.Multiplier)
	fmt.Println()

	fmt.Println("  [Index]")
	if cfg.Index.UseCache {
		fmt.Printf("    Path:       %s\n", store.DefaultPath())
	} else {
		fmt.Println("    Path:       disabled")
	}
	fmt.Printf("    Max events: %s\n", cli.FormatNumber(int64(cfg.Index.MaxEvents)))
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `ccmeter setup` to reconfigure.")
	return nil
}

func formatNumber(n int64) string {
	return cli.FormatNumber(n)
}
