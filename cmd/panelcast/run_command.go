package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"panelcast/internal/api"
	"panelcast/internal/config"
	"panelcast/internal/jobs"
	"panelcast/internal/journal"
	"panelcast/internal/logging"
	"panelcast/internal/notifications"
	"panelcast/internal/stage"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags stage.Flags
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one job in this process without the daemon",
		Long: "Run one job in this process. The daemon lock is held for the duration, " +
			"so a running daemon and a local run never share the workspace.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withWorkspaceLock(cfg, func() error {
				view, err := runLocalJob(runCtx, cfg, logger, flags)
				if view == nil {
					return err
				}
				return reportJob(cmd, *view, jsonOut, err)
			})
		},
	}
	cmd.Flags().BoolVar(&flags.Colorize, "colorize", false, "Run the colorize stage")
	cmd.Flags().BoolVar(&flags.PanelView, "panel-view", false, "Render panel-by-panel instead of full pages")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the final job as JSON")
	return cmd
}

// runLocalJob runs one job to completion on a private job service. The view
// is nil only when no job was created.
func runLocalJob(ctx context.Context, cfg *config.Config, logger *slog.Logger, flags stage.Flags) (*api.JobView, error) {
	jr, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return nil, err
	}
	defer jr.Close()

	svc, err := jobs.NewFromConfig(cfg, jr, notifications.NewService(cfg), logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.KillGrace()+5*time.Second)
		defer cancel()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			logger.Warn("job service shutdown incomplete", logging.Error(err))
		}
	}()

	handle, err := svc.Submit(ctx, flags)
	if err != nil {
		if snap, ok := svc.Lookup(string(handle)); ok {
			view := api.FromSnapshot(snap)
			return &view, err
		}
		return nil, err
	}
	result, err := svc.Await(ctx, handle, 0)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("job %s interrupted: %w", handle, err)
		}
		return nil, err
	}
	view := api.FromSnapshot(result.Snapshot)
	return &view, nil
}

// reportJob prints view and converts a failed job into a command error.
func reportJob(cmd *cobra.Command, view api.JobView, jsonOut bool, cause error) error {
	if jsonOut {
		if err := writeJSON(cmd, view); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		renderJob(out, view, shouldColorize(out))
	}
	if cause != nil {
		return cause
	}
	if !view.Succeeded() {
		if view.Failure != nil {
			return fmt.Errorf("job %s failed: %s", view.ID, view.Failure.Diagnostic)
		}
		return fmt.Errorf("job %s failed", view.ID)
	}
	return nil
}
