package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ccmeter/internal/cli"
	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/logger"
	"github.com/theirongolddev/ccmeter/internal/model"
	"github.com/theirongolddev/ccmeter/internal/pipeline"
	"github.com/theirongolddev/ccmeter/internal/store"
)

var (
	flagRoots   []string
	flagPlan    string
	flagPeriod  string
	flagNoCache bool
	flagJSON    bool
	flagQuiet   bool
	flagVerbose bool
)

// cfg is the effective configuration: file, env, then flags.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:           "ccmeter",
	Short:         "Claude Code usage meter",
	Long:          "Track Claude Code usage from local conversation logs: quota estimates, tokens, costs, sessions and activity.",
	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: loadConfig,
	RunE:              runUsage,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVar(&flagRoots, "roots", nil, "Log directories to scan (default from config)")
	pf.StringVar(&flagPlan, "plan", "", "Subscription plan: pro, max5x or max20x")
	pf.StringVarP(&flagPeriod, "period", "p", "", "Period: today, week, month or all")
	pf.BoolVar(&flagNoCache, "no-cache", false, "Skip the SQLite index, reparse everything")
	pf.BoolVar(&flagJSON, "json", false, "Print JSON instead of tables")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if flagVerbose {
		logger.SetLevel(slog.LevelDebug)
	}

	c, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("roots") {
		c.General.Roots = flagRoots
	}
	if flagPlan != "" {
		c.Quota.Plan = flagPlan
	}
	if flagNoCache {
		c.Index.UseCache = false
	}
	cfg = c
	return nil
}

// period resolves --period, falling back to the configured default.
func period() (model.Period, error) {
	if flagPeriod != "" {
		return model.ParsePeriod(flagPeriod)
	}
	return model.ParsePeriod(cfg.General.DefaultPeriod)
}

// engineOptions translates the effective config into engine options.
func engineOptions(c config.Config) pipeline.Options {
	plan, limits := c.ResolvePlan()
	return pipeline.Options{
		Roots: c.General.Roots,
		Quota: pipeline.QuotaSettings{
			Plan:        plan,
			Limits:      limits,
			WindowHours: c.Quota.WindowHours,
		},
		ContextWindow: c.ContextWindow,
		MaxEvents:     c.Index.MaxEvents,
	}
}

// openEngine builds an engine and restores it from the on-disk index unless
// caching is off. The returned closer releases the index.
func openEngine(ctx context.Context, progress pipeline.ProgressFunc) (*pipeline.Engine, func(), error) {
	opts := engineOptions(cfg)
	opts.Progress = progress
	closer := func() {}

	if cfg.Index.UseCache {
		idx, err := store.Open(store.DefaultPath())
		if err != nil {
			logger.Warn("index unavailable, doing full parse", "error", err)
		} else {
			opts.Store = idx
			closer = func() { _ = idx.Close() }
		}
	}

	eng := pipeline.New(opts)
	if err := eng.Restore(ctx); err != nil {
		if errors.Is(err, pipeline.ErrIndexCapacity) {
			closer()
			return nil, nil, err
		}
		// A damaged index is rebuilt from the logs.
		logger.Warn("index restore failed, rebuilding", "error", err)
		if opts.Store != nil {
			if rerr := opts.Store.Reset(); rerr != nil {
				logger.Warn("index reset failed", "error", rerr)
			}
		}
		eng = pipeline.New(opts)
	}
	return eng, closer, nil
}

// loadEngine opens an engine and runs one ingest pass, printing progress to
// stderr.
func loadEngine(ctx context.Context) (*pipeline.Engine, func(), error) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Scanning logs...\n")
	}
	progressFn := func(current, total int) {
		if flagQuiet {
			return
		}
		if current%100 == 0 || current == total {
			fmt.Fprintf(os.Stderr, "\r  Reading [%d/%d]", current, total)
		}
	}
	eng, closer, err := openEngine(ctx, progressFn)
	if err != nil {
		return nil, nil, err
	}

	stats, err := eng.Refresh(ctx)
	if err != nil {
		closer()
		return nil, nil, err
	}
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "\r  %s events from %d files (%d new) in %s\n",
			cli.FormatNumber(int64(eng.EventCount())), stats.Files, stats.NewEvents,
			stats.Elapsed.Round(time.Millisecond))
		if stats.FileErrors > 0 || stats.ParseErrors > 0 {
			fmt.Fprintln(os.Stderr, cli.Warn(fmt.Sprintf("  %d files unreadable, %d malformed lines skipped",
				stats.FileErrors, stats.ParseErrors)))
		}
	}
	return eng, closer, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
