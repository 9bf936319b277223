package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"panelcast/internal/api"
	"panelcast/internal/config"
	"panelcast/internal/journal"
	"panelcast/internal/poller"
	"panelcast/internal/preflight"
	"panelcast/internal/stage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and the current job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				if !poller.IsUnavailable(err) && !errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("query daemon status: %w", err)
				}
				status, err = offlineStatus(cmd.Context(), cfg)
				if err != nil {
					return err
				}
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			renderDaemonStatus(out, cfg, status, shouldColorize(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

// offlineStatus builds a status report without the daemon. The last job comes
// from the journal when one exists; the journal is never created here.
func offlineStatus(ctx context.Context, cfg *config.Config) (api.DaemonStatus, error) {
	status := api.DaemonStatus{
		LockFilePath:  cfg.LockPath(),
		JournalPath:   cfg.JournalPath(),
		WorkspaceRoot: cfg.Paths.WorkspaceRoot,
		Dependencies:  api.DependencyViews(preflight.CheckSystemDeps(cfg)),
	}
	if health, err := stage.CheckAll(cfg); err == nil {
		status.Stages = api.StageHealthViews(health)
	}

	if _, err := os.Stat(cfg.JournalPath()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return status, nil
		}
		return status, fmt.Errorf("stat journal: %w", err)
	}
	jr, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return status, err
	}
	defer jr.Close()
	snap, ok, err := jr.Latest(ctx)
	if err != nil {
		return status, fmt.Errorf("read journal: %w", err)
	}
	if ok {
		view := api.FromSnapshot(snap)
		status.Job = &view
	}
	return status, nil
}

func renderDaemonStatus(w io.Writer, cfg *config.Config, status api.DaemonStatus, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(w, line)
	}
	if status.Running {
		fmt.Fprintln(w, renderStatusLine("Daemon", statusOK, "running (pid "+strconv.Itoa(status.PID)+")", colorize))
		fmt.Fprintln(w, renderStatusLine("API", statusInfo, cfg.Poller.ServiceURL, colorize))
	} else {
		fmt.Fprintln(w, renderStatusLine("Daemon", statusWarn, "not running; showing journal", colorize))
	}
	fmt.Fprintln(w, renderStatusLine("Workspace", statusInfo, status.WorkspaceRoot, colorize))
	fmt.Fprintln(w, renderStatusLine("Journal", statusInfo, status.JournalPath, colorize))

	fmt.Fprintln(w)
	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(w, line)
	}
	for _, dep := range status.Dependencies {
		kind, msg := statusOK, dep.Command
		if !dep.Available {
			kind, msg = statusError, dep.Detail
			if dep.Optional {
				kind = statusWarn
			}
		}
		fmt.Fprintln(w, renderStatusLine(dep.Name, kind, msg, colorize))
	}
	for _, h := range status.Stages {
		kind, msg := statusOK, ""
		if !h.Ready {
			kind, msg = statusError, h.Detail
		}
		fmt.Fprintln(w, renderStatusLine("Stage "+stageLabel(h.Name), kind, msg, colorize))
	}

	fmt.Fprintln(w)
	for _, line := range renderSectionHeader("Job", colorize) {
		fmt.Fprintln(w, line)
	}
	if status.Job == nil {
		fmt.Fprintln(w, renderStatusLine("Job", statusInfo, "no job recorded", colorize))
		return
	}
	renderJob(w, *status.Job, colorize)
}
