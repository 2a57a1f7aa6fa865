package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/ccmeter/internal/daemon"
	"github.com/theirongolddev/ccmeter/internal/logger"
	"github.com/theirongolddev/ccmeter/internal/tui"
	"github.com/theirongolddev/ccmeter/internal/tui/theme"
	"github.com/theirongolddev/ccmeter/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"tui"},
	Short:   "Live terminal dashboard",
	RunE:    runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	p, err := period()
	if err != nil {
		return err
	}
	theme.Setup(cfg.Appearance.Theme)

	// The dashboard owns the terminal; keep library warnings out of it.
	logger.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	eng, closer, err := openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer closer()

	refresher := daemon.NewRefresher(eng, retryPolicy())
	errCh := make(chan error, 1)
	go func() {
		err := refresher.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			// Capacity exhaustion stops the worker; take the dashboard down with it.
			cancel()
		}
		errCh <- err
	}()

	if w, err := watch.New(cfg.General.Roots, cfg.Daemon.Debounce.Duration, refresher.Trigger); err == nil {
		go func() { _ = w.Run(ctx) }()
	}

	app := tui.NewApp(refresher.Usage, p, cfg.Daemon.RefreshInterval.Duration)
	prog := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard: %w", err)
	}

	cancel()
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func retryPolicy() daemon.RetryPolicy {
	r := cfg.Daemon.Retry
	return daemon.RetryPolicy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay.Duration,
		Multiplier:  r.Multiplier,
	}
}
