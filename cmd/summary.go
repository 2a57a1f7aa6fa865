package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ccmeter/internal/cli"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Week usage percent and days until reset",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	eng, closer, err := loadEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer closer()

	sum := eng.Summary(time.Now())
	if flagJSON {
		return printJSON(sum)
	}

	fmt.Printf("  Week %s  resets in %d days\n",
		cli.RenderPercentBar(sum.WeekUsagePercent, 30), sum.DaysUntilReset)
	return nil
}
