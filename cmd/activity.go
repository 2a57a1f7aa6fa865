package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ccmeter/internal/cli"
	"github.com/theirongolddev/ccmeter/internal/model"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Prompt heatmap for the last 12 weeks",
	RunE:  runActivity,
}

func init() {
	rootCmd.AddCommand(activityCmd)
}

func runActivity(cmd *cobra.Command, _ []string) error {
	eng, closer, err := loadEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer closer()

	now := time.Now()
	days := eng.Stats(model.PeriodWeek, now).DailyActivity
	if flagJSON {
		return printJSON(days)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("ACTIVITY  last 12 weeks"))
	fmt.Println()
	fmt.Print(cli.RenderHeatmap(days))
	fmt.Println()

	if series := recentPrompts(days, len(days)); len(series) > 1 {
		fmt.Print(cli.RenderChart(series, 8, "prompts per day"))
	}
	return nil
}
