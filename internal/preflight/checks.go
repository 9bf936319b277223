package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"panelcast/internal/config"
	"panelcast/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the interpreters, binaries, scripts, and model
// assets the built-in stages use. Colorizer assets are optional because the
// colorize stage only runs when requested.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Python",
			Command:     cfg.Tools.Python,
			Description: "Runs the extract, colorize, narrate, and assemble scripts",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Verifies the re-encoded video",
			Optional:    !cfg.Reencode.Verify,
		},
		{
			Name:        "Extract script",
			Command:     cfg.ToolPath(cfg.Tools.ExtractScript),
			Description: "Panel and dialogue extraction",
			File:        true,
		},
		{
			Name:        "Colorize script",
			Command:     cfg.ToolPath(cfg.Tools.ColorizeScript),
			Description: "Page colorization",
			Optional:    true,
			File:        true,
		},
		{
			Name:        "Colorizer generator",
			Command:     cfg.ToolPath(cfg.Tools.ColorizerGenerator),
			Description: "Colorization model weights",
			Optional:    true,
			File:        true,
		},
		{
			Name:        "Colorizer denoiser",
			Command:     cfg.ToolPath(cfg.Tools.ColorizerDenoiser),
			Description: "Colorization denoiser weights",
			Optional:    true,
			File:        true,
		},
		{
			Name:        "Narrate script",
			Command:     cfg.ToolPath(cfg.Tools.NarrateScript),
			Description: "Speech synthesis",
			File:        true,
		},
		{
			Name:        "Assemble script",
			Command:     cfg.ToolPath(cfg.Tools.AssembleScript),
			Description: "Video assembly",
			File:        true,
		},
	}
	if strings.EqualFold(cfg.Reencode.Engine, "drapto") {
		requirements = append(requirements, deps.Requirement{
			Name:        "FFmpeg",
			Command:     "ffmpeg",
			Description: "Used by drapto for the final encode",
		})
	} else {
		requirements = append(requirements, deps.Requirement{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Final re-encode",
		})
	}
	return deps.CheckBinaries(requirements)
}
