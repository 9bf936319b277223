package workspace_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"panelcast/internal/config"
	"panelcast/internal/fileutil"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/testsupport"
	"panelcast/internal/workspace"
)

func TestResolveDefaultLayout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := workspace.Resolve(cfg)
	root := cfg.Paths.WorkspaceRoot

	if l.Renamed != filepath.Join(root, "output", "renamed") {
		t.Fatalf("unexpected renamed dir: %q", l.Renamed)
	}
	if l.TranscriptFile != filepath.Join(root, "output", "transcript", "transcript.txt") {
		t.Fatalf("unexpected transcript file: %q", l.TranscriptFile)
	}
	if l.Artifact != filepath.Join(root, "output", "output_final", "video_Padding_True_audio.mp4") {
		t.Fatalf("unexpected artifact: %q", l.Artifact)
	}
	if filepath.Base(l.Reencoded) != "video_Padding_True_audio_reencoded.mp4" {
		t.Fatalf("unexpected reencoded name: %q", l.Reencoded)
	}
}

func TestResolveDraptoUsesMatroska(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConfig(func(c *config.Config) {
		c.Reencode.Engine = "drapto"
	}))
	l := workspace.Resolve(cfg)
	if filepath.Base(l.Reencoded) != "video_Padding_True_audio_reencoded.mkv" {
		t.Fatalf("unexpected reencoded name: %q", l.Reencoded)
	}
}

func TestPrepareIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SeedInputs(t, cfg)
	l := workspace.Resolve(cfg)
	testsupport.WriteFile(t, filepath.Join(l.Audio, "stale.wav"), "old")
	testsupport.WriteFile(t, l.Artifact, "old video")

	for i := 0; i < 2; i++ {
		if err := workspace.Prepare(l); err != nil {
			t.Fatalf("Prepare #%d: %v", i+1, err)
		}
		for _, dir := range l.Outputs() {
			info, err := os.Stat(dir)
			if err != nil || !info.IsDir() {
				t.Fatalf("expected output dir %s to exist: %v", dir, err)
			}
			present, err := fileutil.Present(dir)
			if err != nil {
				t.Fatal(err)
			}
			if present {
				t.Fatalf("expected output dir %s to be empty", dir)
			}
		}
		if !fileutil.Exists(filepath.Join(l.Raw, "001.png")) {
			t.Fatal("prepare must not touch input pages")
		}
	}
}

func TestPrepareFailureIsWorkspaceError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	blocker := filepath.Join(testsupport.BaseDir(cfg), "blocker")
	testsupport.WriteFile(t, blocker, "not a directory")
	cfg.Paths.WorkspaceRoot = filepath.Join(blocker, "ws")

	err := workspace.Prepare(workspace.Resolve(cfg))
	if err == nil {
		t.Fatal("expected prepare to fail")
	}
	if !errors.Is(err, services.ErrWorkspace) {
		t.Fatalf("expected ErrWorkspace, got %v", err)
	}
}

func TestClearRemovesInputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SeedInputs(t, cfg)
	l := workspace.Resolve(cfg)
	if err := workspace.Clear(l); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, dir := range append(l.Inputs(), l.Outputs()...) {
		present, err := fileutil.Present(dir)
		if err != nil {
			t.Fatal(err)
		}
		if present {
			t.Fatalf("expected %s to be empty after clear", dir)
		}
	}
}

func TestVarsSelectsAssemblyInput(t *testing.T) {
	l := workspace.Resolve(testsupport.NewConfig(t))

	plain := workspace.Vars(l, stage.Flags{})
	if plain["assembly_input"] != l.Renamed {
		t.Fatalf("expected renamed dir without colorize, got %q", plain["assembly_input"])
	}
	colored := workspace.Vars(l, stage.Flags{Colorize: true})
	if colored["assembly_input"] != l.Colorized {
		t.Fatalf("expected colorized dir with colorize, got %q", colored["assembly_input"])
	}
	for _, name := range stage.Placeholders {
		if _, ok := plain[name]; !ok {
			t.Fatalf("placeholder %q has no value", name)
		}
	}
}

func TestStageInputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := workspace.Resolve(cfg)
	src := t.TempDir()
	page := filepath.Join(src, "Cafe\u0301.PNG")
	char := filepath.Join(src, "nami.jpeg")
	testsupport.WriteFile(t, page, "page")
	testsupport.WriteFile(t, char, "nami")

	report, err := workspace.StageInputs(l, workspace.StageRequest{
		Pages:          []string{page},
		Characters:     []string{char},
		CharacterNames: []string{"Luffy, Nami", " "},
	})
	if err != nil {
		t.Fatalf("StageInputs: %v", err)
	}
	if len(report.Pages) != 1 || filepath.Base(report.Pages[0]) != "Caf\u00e9.PNG" {
		t.Fatalf("expected NFC page name, got %v", report.Pages)
	}
	names, err := os.ReadFile(filepath.Join(l.Character, workspace.CharacterNamesFile))
	if err != nil {
		t.Fatalf("read names: %v", err)
	}
	if string(names) != "Luffy,Nami" {
		t.Fatalf("unexpected names file: %q", names)
	}
}

func TestStageInputsRejectsNonImages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := workspace.Resolve(cfg)
	gif := filepath.Join(t.TempDir(), "page.gif")
	testsupport.WriteFile(t, gif, "gif")

	_, err := workspace.StageInputs(l, workspace.StageRequest{Pages: []string{gif}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fileutil.Exists(filepath.Join(l.Raw, "page.gif")) {
		t.Fatal("rejected file must not be copied")
	}
}

func TestUsage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SeedInputs(t, cfg)
	usage, err := workspace.Usage(workspace.Resolve(cfg))
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	var raw workspace.DirUsage
	for _, entry := range usage {
		if entry.Name == "raw" {
			raw = entry
		}
		if entry.Name == "audio" && entry.Files != 0 {
			t.Fatalf("expected missing audio dir to report zero files")
		}
	}
	if raw.Files != 1 || raw.Size != int64(len("raw page")) {
		t.Fatalf("unexpected raw usage: %+v", raw)
	}
	if !strings.HasSuffix(raw.Path, filepath.Join("input", "raw")) {
		t.Fatalf("unexpected raw path: %q", raw.Path)
	}
}
