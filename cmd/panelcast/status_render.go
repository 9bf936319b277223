package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"panelcast/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

// shouldColorize reports whether w is a terminal and NO_COLOR is unset.
func shouldColorize(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
	}
	return []string{line, rule}
}

func jobKind(view api.JobView) statusKind {
	switch view.Status {
	case "succeeded":
		return statusOK
	case "failed":
		return statusError
	case "running":
		return statusInfo
	default:
		return statusWarn
	}
}

// renderJob writes a job summary followed by its stage table.
func renderJob(w io.Writer, view api.JobView, colorize bool) {
	progress := fmt.Sprintf("%d/%d stages", view.Done, view.Total)
	if view.Current != "" {
		progress += ", running " + stageLabel(view.Current)
	}
	fmt.Fprintln(w, renderStatusLine("Job "+shortJobID(view.ID), jobKind(view), view.Status+" ("+progress+")", colorize))
	fmt.Fprintln(w, renderStatusLine("Flags", statusInfo,
		fmt.Sprintf("colorize: %s, panel view: %s", yesNo(view.Colorize), yesNo(view.PanelView)), colorize))
	if view.Artifact != "" {
		fmt.Fprintln(w, renderStatusLine("Artifact", statusOK, view.Artifact, colorize))
	}
	if view.Failure != nil {
		where := view.Failure.Kind
		if view.Failure.Stage != "" {
			where = stageLabel(view.Failure.Stage)
		}
		fmt.Fprintln(w, renderStatusLine("Failure", statusError, where+": "+view.Failure.Diagnostic, colorize))
	}
	if view.StartedAt != "" {
		fmt.Fprintln(w, renderStatusLine("Started", statusInfo, view.StartedAt, colorize))
	}
	if view.FinishedAt != "" {
		fmt.Fprintln(w, renderStatusLine("Finished", statusInfo, view.FinishedAt, colorize))
	}
	if len(view.Stages) == 0 {
		return
	}
	fmt.Fprintln(w, renderStageTable(view.Stages))
}

func renderStageTable(stages []api.StageView) string {
	rows := make([][]string, 0, len(stages))
	for _, s := range stages {
		exit := ""
		if s.State == "succeeded" || s.State == "failed" {
			exit = strconv.Itoa(s.ExitCode)
		}
		duration := ""
		if s.DurationMS > 0 {
			duration = (time.Duration(s.DurationMS) * time.Millisecond).Round(100 * time.Millisecond).String()
		}
		rows = append(rows, []string{stageLabel(s.Name), s.State, exit, duration, firstLine(s.Diagnostic)})
	}
	return renderTable(
		[]column{col("Stage"), col("State"), numCol("Exit"), numCol("Duration"), col("Diagnostic")},
		rows,
	)
}

func shortJobID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx] + " ..."
	}
	return s
}
