package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ccmeter/internal/cli"
	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/model"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Sessions active in the last 24 hours",
	RunE:  runSessions,
}

var (
	sessionsLimit int
	sessionsAll   bool
)

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 20, "Number of sessions to show")
	sessionsCmd.Flags().BoolVarP(&sessionsAll, "all", "a", false, "Include sessions older than 24 hours")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, _ []string) error {
	eng, closer, err := loadEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer closer()

	if sessionsAll {
		return printAllSessions(eng.Sessions())
	}

	sessions := eng.ActiveSessions(time.Now())
	if sessionsLimit > 0 && len(sessions) > sessionsLimit {
		sessions = sessions[:sessionsLimit]
	}
	if flagJSON {
		return printJSON(sessions)
	}

	if len(sessions) == 0 {
		fmt.Println("\n  No sessions active in the last 24 hours.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("ACTIVE SESSIONS  (showing %d)", len(sessions))))
	fmt.Println()

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			cli.FormatAgo(s.LastActivity),
			truncate(s.Project, 18),
			truncate(s.ModelDisplayName, 14),
			cli.FormatMinutes(s.DurationMinutes),
			cli.FormatTokens(s.TotalTokens),
			cli.Cost(cli.FormatCost(s.CostUSD)),
			cli.FormatContext(s.ContextRemainingPercent, s.TotalTokens),
			fmt.Sprint(s.TodoCount),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Last Active", "Project", "Model", "Duration", "Tokens", "Cost", "Ctx Left", "Todos"},
		Rows:    rows,
	}))
	return nil
}

func printAllSessions(sessions []model.Session) error {
	if sessionsLimit > 0 && len(sessions) > sessionsLimit {
		sessions = sessions[:sessionsLimit]
	}
	if flagJSON {
		return printJSON(sessions)
	}
	if len(sessions) == 0 {
		fmt.Println("\n  No sessions found.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("SESSIONS  (showing %d)", len(sessions))))
	fmt.Println()

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.LastActivity.Local().Format("Jan 02 15:04"),
			s.ShortID(),
			truncate(s.Project(), 18),
			truncate(config.DisplayName(s.Model), 14),
			cli.FormatNumber(int64(s.MessageCount)),
			cli.FormatTokens(s.Tokens.Total()),
			cli.Cost(cli.FormatCost(s.CostUSD)),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Last Active", "ID", "Project", "Model", "Msgs", "Tokens", "Cost"},
		Rows:    rows,
	}))
	return nil
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
