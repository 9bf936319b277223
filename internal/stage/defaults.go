package stage

import (
	"path/filepath"
	"strconv"

	"panelcast/internal/config"
)

// Built-in stage names.
const (
	NameExtract  = "extract"
	NameColorize = "colorize"
	NameNarrate  = "narrate"
	NameAssemble = "assemble"
	NameReencode = "reencode"
)

// DefaultDefinitions returns the built-in pipeline and re-encode definitions
// for cfg.
func DefaultDefinitions(cfg *config.Config) ([]Definition, Definition) {
	extract := cfg.ToolPath(cfg.Tools.ExtractScript)
	colorize := cfg.ToolPath(cfg.Tools.ColorizeScript)
	narrate := cfg.ToolPath(cfg.Tools.NarrateScript)
	assemble := cfg.ToolPath(cfg.Tools.AssembleScript)

	colorizeArgs := []string{
		colorize,
		"-p", "{renamed}",
		"-des_path", cfg.ToolPath(cfg.Tools.ColorizerDenoiser),
		"-gen", cfg.ToolPath(cfg.Tools.ColorizerGenerator),
		"-s", "{colorized}",
		"-ds", strconv.Itoa(cfg.Tools.ColorizerDenoiseStr),
	}
	if cfg.Tools.UseGPU {
		colorizeArgs = append(colorizeArgs, "--gpu")
	}

	stages := []Definition{
		{
			Name:    NameExtract,
			Command: cfg.Tools.Python,
			Args: []string{
				extract,
				"--image", "{raw}",
				"--rename_image", "{renamed}",
				"--character", "{character}",
				"--json", "{json}",
				"--transcript", "{transcript}",
			},
			WorkDir:  filepath.Dir(extract),
			Inputs:   []string{"{raw}", "{character}"},
			Produces: "{transcript_file}",
		},
		{
			Name:      NameColorize,
			Command:   cfg.Tools.Python,
			Args:      colorizeArgs,
			WorkDir:   filepath.Dir(colorize),
			Inputs:    []string{"{renamed}"},
			Optional:  true,
			EnabledBy: FlagColorize,
		},
		{
			Name:    NameNarrate,
			Command: cfg.Tools.Python,
			Args: []string{
				narrate,
				"-i", "{renamed}",
				"-v", "{voice_bank}",
				"-t", "{transcript_file}",
				"-o", "{audio}",
				"-m", cfg.Tools.NarratorVoice,
			},
			WorkDir: filepath.Dir(narrate),
			Inputs:  []string{"{renamed}", "{transcript_file}"},
		},
		{
			Name:    NameAssemble,
			Command: cfg.Tools.Python,
			Args: []string{
				assemble,
				"-i", "{assembly_input}",
				"-j", "{json}",
				"-a", "{audio}",
				"-s", "{final}",
			},
			WorkDir:  filepath.Dir(assemble),
			Inputs:   []string{"{assembly_input}", "{json}", "{audio}"},
			FlagArgs: map[string][]string{FlagPanelView: {"--panel_view"}},
		},
	}

	return stages, ReencodeDefinition(cfg)
}

// ReencodeDefinition returns the canonical re-encode step for the configured
// engine.
func ReencodeDefinition(cfg *config.Config) Definition {
	if cfg.Reencode.Engine == DriverDrapto {
		return Definition{
			Name:     NameReencode,
			Command:  DriverDrapto,
			Args:     []string{"{artifact}", "{reencoded}"},
			Inputs:   []string{"{artifact}"},
			Produces: "{reencoded}",
			Driver:   DriverDrapto,
		}
	}
	return Definition{
		Name:    NameReencode,
		Command: cfg.Tools.FFmpeg,
		Args: []string{
			"-y",
			"-i", "{artifact}",
			"-c:v", "libx264",
			"-c:a", "aac",
			"-movflags", "+faststart",
			"{reencoded}",
		},
		Inputs:   []string{"{artifact}"},
		Produces: "{reencoded}",
	}
}
