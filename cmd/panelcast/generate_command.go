package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"panelcast/internal/poller"
	"panelcast/internal/stage"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var flags stage.Flags
	var deadline time.Duration
	var syncMode bool
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Ask the daemon for a video and wait for it",
		Long: "Submit a job to the daemon and wait for the artifact. Busy or unreachable " +
			"daemons are retried until --deadline; the job keeps running on the daemon " +
			"if this command gives up.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			p, err := poller.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if syncMode {
				resp, err := p.Client().GenerateSync(runCtx, flags)
				if jsonOut && (err == nil || resp.JobID != "") {
					if werr := writeJSON(cmd, resp); werr != nil {
						return werr
					}
				}
				if err != nil {
					return err
				}
				if !resp.IsSuccess {
					return fmt.Errorf("generation failed: %s", resp.Error)
				}
				if !jsonOut {
					fmt.Fprintln(cmd.OutOrStdout(), resp.ArtifactPath)
				}
				return nil
			}

			artifact, err := p.RequestAndWait(runCtx, flags, deadline)
			if err != nil {
				var failure *poller.Failure
				if jsonOut && errors.As(err, &failure) {
					if werr := writeJSON(cmd, failureView(failure)); werr != nil {
						return werr
					}
				}
				return err
			}
			if jsonOut {
				return writeJSON(cmd, map[string]any{"is_success": true, "artifact_path": artifact})
			}
			fmt.Fprintln(cmd.OutOrStdout(), artifact)
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.Colorize, "colorize", false, "Run the colorize stage")
	cmd.Flags().BoolVar(&flags.PanelView, "panel-view", false, "Render panel-by-panel instead of full pages")
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "Give up after this long (default poller.deadline_seconds)")
	cmd.Flags().BoolVar(&syncMode, "sync", false, "Use the blocking /generate-manga endpoint instead of polling")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func failureView(f *poller.Failure) map[string]any {
	view := map[string]any{
		"is_success": false,
		"reason":     string(f.Reason),
		"error":      f.Error(),
	}
	if f.JobID != "" {
		view["job_id"] = f.JobID
	}
	if f.Stage != "" {
		view["stage"] = f.Stage
	}
	return view
}
