package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ccmeter/internal/cli"
	"github.com/theirongolddev/ccmeter/internal/model"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Tokens, cost and quota estimate for a period",
	RunE:  runUsage,
}

var (
	usageSince string
	usageUntil string
)

func init() {
	usageCmd.Flags().StringVar(&usageSince, "since", "", "Start date (YYYY-MM-DD, local), overrides --period")
	usageCmd.Flags().StringVar(&usageUntil, "until", "", "End date, exclusive (YYYY-MM-DD, local)")
	rootCmd.AddCommand(usageCmd)
}

// parseDay reads a local calendar date; empty means unbounded.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func runUsage(cmd *cobra.Command, _ []string) error {
	p, err := period()
	if err != nil {
		return err
	}

	since, err := parseDay(usageSince)
	if err != nil {
		return err
	}
	until, err := parseDay(usageUntil)
	if err != nil {
		return err
	}

	eng, closer, err := loadEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer closer()

	now := time.Now()
	stats := eng.Stats(p, now)
	if !since.IsZero() || !until.IsZero() {
		stats = eng.StatsRange(since, until, now)
	}
	if flagJSON {
		return printJSON(stats)
	}

	if eng.EventCount() == 0 {
		fmt.Println("\n  No Claude Code conversation logs found.")
		fmt.Printf("  Looked in: %v\n", cfg.General.Roots)
		return nil
	}

	printUsage(stats)
	return nil
}

func printUsage(stats model.UsageStats) {
	q := stats.Quota

	fmt.Println()
	fmt.Println(cli.RenderTitle("CLAUDE CODE USAGE  " + stats.Period.Label()))
	fmt.Println()

	rows := [][]string{
		{"Sessions", cli.FormatNumber(int64(stats.SessionCount))},
		{"Messages", cli.FormatNumber(int64(stats.MessageCount))},
		{"---"},
		{"Input Tokens", cli.FormatTokens(stats.Tokens.Input)},
		{"Output Tokens", cli.FormatTokens(stats.Tokens.Output)},
		{"Cache Write", cli.FormatTokens(stats.Tokens.CacheWrite)},
		{"Cache Read", cli.FormatTokens(stats.Tokens.CacheRead)},
		{"Total Tokens", cli.FormatTokens(stats.TotalTokens)},
		{"---"},
		{"Cost (est)", cli.FormatCost(stats.TotalCostUSD)},
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}))

	fmt.Println()
	fmt.Printf("  %s plan, %s tier\n", q.Plan, q.Tier)
	fmt.Printf("  %dh window  %s  %d of ~%d prompts\n",
		q.WindowHours, cli.RenderPercentBar(q.UsagePercent, 30), q.MessagesInWindow, q.EstimatedLimit)
	fmt.Printf("  Week        %s  resets in %d days\n",
		cli.RenderPercentBar(q.WeekUsagePercent, 30), stats.WeeklyUsage.DaysUntilReset)
	if spark := recentPrompts(stats.DailyActivity, 14); len(spark) > 0 {
		fmt.Printf("  Last 14 days %s\n", cli.Tokens(cli.RenderSparkline(spark)))
	}
	fmt.Println(cli.Muted("  Quota figures are estimates from prompt counts."))
}

// recentPrompts returns up to n daily prompt counts ending today.
func recentPrompts(days []model.DailyActivity, n int) []float64 {
	today := time.Now().Format("2006-01-02")
	var out []float64
	for _, d := range days {
		if d.Date > today {
			break
		}
		out = append(out, float64(d.PromptCount))
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
