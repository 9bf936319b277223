package stage

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"panelcast/internal/config"
)

// Health summarizes the readiness of a pipeline stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Check reports whether def can launch: its command resolves on PATH and a
// leading script argument exists. Placeholders are not expanded.
func Check(def Definition) Health {
	if def.DriverName() == DriverDrapto {
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			return Unhealthy(def.Name, "drapto requires ffmpeg on PATH")
		}
		return Healthy(def.Name)
	}
	command := strings.TrimSpace(def.Command)
	if _, err := exec.LookPath(command); err != nil {
		return Unhealthy(def.Name, fmt.Sprintf("binary %q not found", command))
	}
	if len(def.Args) > 0 && isScript(def.Args[0]) {
		if _, err := os.Stat(def.Args[0]); err != nil {
			return Unhealthy(def.Name, fmt.Sprintf("script %s not found", def.Args[0]))
		}
	}
	return Healthy(def.Name)
}

// CheckAll loads the configured stages and checks each one, re-encode last.
func CheckAll(cfg *config.Config) ([]Health, error) {
	defs, reencode, err := Load(cfg)
	if err != nil {
		return nil, err
	}
	out := make([]Health, 0, len(defs)+1)
	for _, def := range append(defs, reencode) {
		out = append(out, Check(def))
	}
	return out, nil
}

func isScript(arg string) bool {
	return !strings.Contains(arg, "{") && (strings.HasSuffix(arg, ".py") || strings.HasSuffix(arg, ".sh"))
}
