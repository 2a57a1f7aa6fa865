package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ccmeter/internal/cli"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Per-model token and cost breakdown",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
	p, err := period()
	if err != nil {
		return err
	}

	eng, closer, err := loadEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer closer()

	stats := eng.Stats(p, time.Now())
	if flagJSON {
		return printJSON(stats.ByModel)
	}

	if len(stats.ByModel) == 0 {
		fmt.Println("\n  No model usage in the selected period.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("MODEL USAGE  " + p.Label()))
	fmt.Println()

	rows := make([][]string, 0, len(stats.ByModel))
	for _, m := range stats.ByModel {
		share := 0.0
		if stats.TotalTokens > 0 {
			share = float64(m.TotalTokens) / float64(stats.TotalTokens) * 100
		}
		rows = append(rows, []string{
			m.DisplayName,
			cli.FormatNumber(int64(m.Messages)),
			cli.FormatTokens(m.Tokens.Input),
			cli.FormatTokens(m.Tokens.Output),
			cli.FormatTokens(m.Tokens.CacheRead + m.Tokens.CacheWrite),
			cli.Cost(cli.FormatCost(m.CostUSD)),
			cli.FormatPercent(share),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Model", "Calls", "Input", "Output", "Cache", "Cost", "Share"},
		Rows:    rows,
	}))
	return nil
}
