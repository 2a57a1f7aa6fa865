package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ccmeter/internal/cli"
	"github.com/theirongolddev/ccmeter/internal/model"
)

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Prompts per day for the current Sunday-Saturday week",
	RunE:  runWeek,
}

func init() {
	rootCmd.AddCommand(weekCmd)
}

func runWeek(cmd *cobra.Command, _ []string) error {
	eng, closer, err := loadEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer closer()

	stats := eng.Stats(model.PeriodWeek, time.Now())
	w := stats.WeeklyUsage
	if flagJSON {
		return printJSON(w)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("THIS WEEK  from " + w.WeekStart))
	fmt.Println()

	peak := 0
	for _, d := range w.Days {
		peak = max(peak, d.PromptCount)
	}
	for _, d := range w.Days {
		label := d.DayName
		if d.IsToday {
			label += "*"
		}
		if d.IsFuture {
			fmt.Printf("  %s\n", cli.Muted(fmt.Sprintf("%-4s", label)))
			continue
		}
		fmt.Println(cli.RenderHorizontalBar(fmt.Sprintf("%-4s", label), float64(d.PromptCount), float64(peak), 40))
	}

	fmt.Println()
	fmt.Printf("  %s  of ~%s prompts\n",
		cli.RenderPercentBar(stats.Quota.WeekUsagePercent, 30), cli.FormatNumber(int64(w.EstimatedWeeklyLimit)))
	fmt.Printf("  Resets %s (%d days)\n", w.ResetDate, w.DaysUntilReset)
	return nil
}
