package testsupport

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"panelcast/internal/config"
)

// Stub bodies. Each receives the tool's argv in "$@" and writes what the real
// tool would produce.
const (
	extractBody = `while [ $# -gt 0 ]; do
  case "$1" in
    --rename_image) renamed="$2"; shift ;;
    --json) json="$2"; shift ;;
    --transcript) transcript="$2"; shift ;;
  esac
  shift
done
printf 'page' > "$renamed/page_001.png"
printf '{"panels":[]}' > "$json/page_001.json"
printf 'Luffy: hello' > "$transcript/%s"
`
	colorizeBody = `while [ $# -gt 0 ]; do
  case "$1" in
    -s) out="$2"; shift ;;
  esac
  shift
done
printf 'color' > "$out/page_001.png"
`
	narrateBody = `while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift ;;
  esac
  shift
done
printf 'wav' > "$out/page_001.wav"
`
	assembleBody = `while [ $# -gt 0 ]; do
  case "$1" in
    -s) out="$2"; shift ;;
  esac
  shift
done
printf 'mp4' > "$out/%s"
`
	ffmpegBody = `for last in "$@"; do :; done
printf 'reencoded' > "$last"
`
)

func (b *configBuilder) writeStubs() {
	b.t.Helper()
	cfg := b.cfg
	cfg.Tools.Python = "/bin/sh"
	cfg.Tools.FFmpeg = filepath.Join(b.baseDir, "bin", "ffmpeg")

	calls := callLogPath(b.baseDir)
	stubs := []struct {
		stage string
		path  string
		body  string
	}{
		{"extract", cfg.ToolPath(cfg.Tools.ExtractScript), fmt.Sprintf(extractBody, cfg.Workspace.TranscriptFile)},
		{"colorize", cfg.ToolPath(cfg.Tools.ColorizeScript), colorizeBody},
		{"narrate", cfg.ToolPath(cfg.Tools.NarrateScript), narrateBody},
		{"assemble", cfg.ToolPath(cfg.Tools.AssembleScript), fmt.Sprintf(assembleBody, cfg.Workspace.ArtifactName)},
		{"reencode", cfg.Tools.FFmpeg, ffmpegBody},
	}
	for _, stub := range stubs {
		b.write(stub.path, stubScript(stub.stage, calls, stub.body, b.behaviors[stub.stage]))
	}
}

func stubScript(stage, calls, body string, behavior Behavior) string {
	var sb strings.Builder
	sb.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&sb, "echo \"%s $*\" >> %q\n", stage, calls)
	if behavior.SleepSeconds > 0 {
		fmt.Fprintf(&sb, "sleep %d\n", behavior.SleepSeconds)
	}
	if behavior.Stderr != "" {
		fmt.Fprintf(&sb, "echo %q >&2\n", behavior.Stderr)
	}
	if behavior.ExitCode != 0 {
		fmt.Fprintf(&sb, "exit %d\n", behavior.ExitCode)
		return sb.String()
	}
	if !behavior.SkipOutput {
		sb.WriteString(body)
	}
	sb.WriteString("exit 0\n")
	return sb.String()
}

func callLogPath(base string) string {
	return filepath.Join(base, "calls.log")
}

// Calls returns one line per stub invocation, in order: the stage name
// followed by its arguments.
func Calls(t testing.TB, cfg *config.Config) []string {
	t.Helper()
	f, err := os.Open(callLogPath(BaseDir(cfg)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("open call log: %v", err)
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// CalledStages returns only the stage names from Calls.
func CalledStages(t testing.TB, cfg *config.Config) []string {
	t.Helper()
	var stages []string
	for _, line := range Calls(t, cfg) {
		name, _, _ := strings.Cut(line, " ")
		stages = append(stages, name)
	}
	return stages
}
