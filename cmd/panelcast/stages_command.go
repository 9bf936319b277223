package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"panelcast/internal/api"
	"panelcast/internal/deps"
	"panelcast/internal/preflight"
	"panelcast/internal/stage"
)

func newStagesCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List pipeline stages and check that their tools are installed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			defs, reencode, err := stage.Load(cfg)
			if err != nil {
				return err
			}
			all := append(defs, reencode)
			dependencies := preflight.CheckSystemDeps(cfg)

			if jsonOut {
				health := make([]stage.Health, 0, len(all))
				for _, def := range all {
					health = append(health, stage.Check(def))
				}
				return writeJSON(cmd, map[string]any{
					"stages":       all,
					"health":       api.StageHealthViews(health),
					"dependencies": api.DependencyViews(dependencies),
				})
			}

			rows := make([][]string, 0, len(all))
			for i, def := range all {
				health := stage.Check(def)
				ready := "ready"
				if !health.Ready {
					ready = health.Detail
				}
				enabled := "always"
				if def.Optional {
					enabled = "when " + def.EnabledBy
				}
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					stageLabel(def.Name),
					def.DriverName(),
					commandLine(def),
					enabled,
					ready,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]column{numCol("#"), col("Stage"), col("Driver"), col("Command"), col("Runs"), col("Ready")},
				rows,
			))

			colorize := shouldColorize(out)
			for _, dep := range dependencies {
				kind, msg := statusOK, dep.Command
				if !dep.Available {
					kind, msg = statusError, dep.Detail
					if dep.Optional {
						kind = statusWarn
					}
				}
				fmt.Fprintln(out, renderStatusLine(dep.Name, kind, msg, colorize))
			}
			if missing := deps.Missing(dependencies); len(missing) > 0 {
				return fmt.Errorf("%d required dependencies missing", len(missing))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func commandLine(def stage.Definition) string {
	if def.DriverName() == stage.DriverDrapto {
		return "(in-process)"
	}
	parts := append([]string{def.Command}, def.Args...)
	line := strings.Join(parts, " ")
	if len(line) > 60 {
		line = line[:57] + "..."
	}
	return line
}
