package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/source"
	"github.com/theirongolddev/ccmeter/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	// Edit the file settings, not the flag-adjusted ones.
	fileCfg, err := config.Load()
	if err != nil {
		return err
	}

	files := source.ScanRoots(fileCfg.General.Roots)
	fmt.Println()
	fmt.Println("  Welcome to ccmeter!")
	if len(files) > 0 {
		fmt.Printf("  Found %s conversation logs across %d projects.\n",
			formatNumber(int64(len(files))), source.CountProjects(files))
	}
	fmt.Println()

	updated, err := tui.RunSetup(fileCfg)
	if err != nil {
		return err
	}
	if err := config.Save(updated); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("  Saved to %s\n", config.Path())
	fmt.Println("  Run `ccmeter setup` anytime to reconfigure.")
	return nil
}
