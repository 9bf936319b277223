package workspace

import (
	"path/filepath"
	"strings"

	"panelcast/internal/config"
	"panelcast/internal/stage"
)

// Layout holds the concrete paths of a job workspace.
type Layout struct {
	Root           string
	Raw            string
	Character      string
	VoiceBank      string
	Renamed        string
	Colorized      string
	JSON           string
	Transcript     string
	TranscriptFile string
	Audio          string
	Final          string
	Artifact       string
	Reencoded      string
}

// Resolve maps the configured workspace onto absolute paths.
func Resolve(cfg *config.Config) Layout {
	root := cfg.Paths.WorkspaceRoot
	ws := cfg.Workspace
	join := func(rel string) string {
		if filepath.IsAbs(rel) {
			return filepath.Clean(rel)
		}
		return filepath.Join(root, rel)
	}

	l := Layout{
		Root:       root,
		Raw:        join(ws.RawDir),
		Character:  join(ws.CharacterDir),
		VoiceBank:  join(ws.VoiceBankDir),
		Renamed:    join(ws.RenamedDir),
		Colorized:  join(ws.ColorizedDir),
		JSON:       join(ws.JSONDir),
		Transcript: join(ws.TranscriptDir),
		Audio:      join(ws.AudioDir),
		Final:      join(ws.FinalDir),
	}
	l.TranscriptFile = filepath.Join(l.Transcript, ws.TranscriptFile)
	l.Artifact = filepath.Join(l.Final, ws.ArtifactName)

	ext := filepath.Ext(ws.ArtifactName)
	reencodedExt := ext
	if cfg.Reencode.Engine == stage.DriverDrapto {
		reencodedExt = ".mkv"
	}
	l.Reencoded = filepath.Join(l.Final, strings.TrimSuffix(ws.ArtifactName, ext)+"_reencoded"+reencodedExt)
	return l
}

// Inputs lists the directories a user populates before a run.
func (l Layout) Inputs() []string {
	return []string{l.Raw, l.Character, l.VoiceBank}
}

// Outputs lists the directories recreated empty before every run.
func (l Layout) Outputs() []string {
	return []string{l.Renamed, l.Colorized, l.JSON, l.Transcript, l.Audio, l.Final}
}

// AssemblyInput returns the image directory the assembler reads.
func (l Layout) AssemblyInput(flags stage.Flags) string {
	if flags.Colorize {
		return l.Colorized
	}
	return l.Renamed
}

// Vars returns the placeholder table used to expand stage definitions.
func Vars(l Layout, flags stage.Flags) map[string]string {
	return map[string]string{
		"raw":             l.Raw,
		"character":       l.Character,
		"voice_bank":      l.VoiceBank,
		"renamed":         l.Renamed,
		"colorized":       l.Colorized,
		"json":            l.JSON,
		"transcript":      l.Transcript,
		"transcript_file": l.TranscriptFile,
		"audio":           l.Audio,
		"final":           l.Final,
		"artifact":        l.Artifact,
		"reencoded":       l.Reencoded,
		"assembly_input":  l.AssemblyInput(flags),
		"root":            l.Root,
	}
}
