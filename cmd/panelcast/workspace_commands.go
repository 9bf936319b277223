package main

import (
	"fmt"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"panelcast/internal/config"
	"panelcast/internal/poller"
	"panelcast/internal/workspace"
)

func newWorkspaceCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Inspect and manage the job workspace",
	}
	cmd.AddCommand(newWorkspaceShowCommand(ctx))
	cmd.AddCommand(newWorkspacePrepareCommand(ctx))
	cmd.AddCommand(newWorkspaceClearCommand(ctx))
	cmd.AddCommand(newWorkspaceStageCommand(ctx))
	return cmd
}

func newWorkspaceShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List workspace directories with file counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			usage, err := workspace.Usage(workspace.Resolve(cfg))
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, usage)
			}
			rows := make([][]string, 0, len(usage))
			for _, u := range usage {
				rows = append(rows, []string{stageLabel(u.Name), strconv.Itoa(u.Files), humanBytes(u.Size), u.Path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{col("Directory"), numCol("Files"), numCol("Size"), col("Path")},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newWorkspacePrepareCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Empty every output directory and create missing input directories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withWorkspaceLock(cfg, func() error {
				if err := workspace.Prepare(workspace.Resolve(cfg)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Workspace prepared:", cfg.Paths.WorkspaceRoot)
				return nil
			})
		},
	}
}

func newWorkspaceClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all inputs and outputs",
		Long:  "Remove all inputs and outputs. When the daemon is running the request goes through it and is refused while a job runs.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			err = client.Clear(cmd.Context())
			switch {
			case err == nil:
				fmt.Fprintln(cmd.OutOrStdout(), "Workspace cleared by daemon")
				return nil
			case poller.IsBusy(err):
				return fmt.Errorf("a job is running; wait for it before clearing the workspace")
			case !poller.IsUnavailable(err):
				return err
			}
			return withWorkspaceLock(cfg, func() error {
				if err := workspace.Clear(workspace.Resolve(cfg)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Workspace cleared:", cfg.Paths.WorkspaceRoot)
				return nil
			})
		},
	}
}

func newWorkspaceStageCommand(ctx *commandContext) *cobra.Command {
	var characters []string
	var names []string
	var replace bool
	cmd := &cobra.Command{
		Use:   "stage <page>...",
		Short: "Copy chapter pages and character references into the workspace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withWorkspaceLock(cfg, func() error {
				report, err := workspace.StageInputs(workspace.Resolve(cfg), workspace.StageRequest{
					Pages:          args,
					Characters:     characters,
					CharacterNames: names,
					Replace:        replace,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Staged %d page(s) and %d character reference(s)\n", len(report.Pages), len(report.Characters))
				if report.NamesFile != "" {
					fmt.Fprintln(out, "Character names:", report.NamesFile)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&characters, "character", nil, "Character reference image (repeatable)")
	cmd.Flags().StringSliceVar(&names, "names", nil, "Comma separated character names")
	cmd.Flags().BoolVar(&replace, "replace", false, "Empty the page and character directories first")
	return cmd
}

// withWorkspaceLock runs fn while holding the daemon lock so local workspace
// edits never race a running daemon.
func withWorkspaceLock(cfg *config.Config, fn func() error) error {
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", cfg.LockPath(), err)
	}
	if !locked {
		return fmt.Errorf("the panelcast daemon holds %s; stop it or use its API", cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
