package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"panelcast/internal/config"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SeedInputs places one chapter page and one character reference into the
// workspace input directories.
func SeedInputs(t testing.TB, cfg *config.Config) {
	t.Helper()
	root := cfg.Paths.WorkspaceRoot
	WriteFile(t, filepath.Join(root, cfg.Workspace.RawDir, "001.png"), "raw page")
	WriteFile(t, filepath.Join(root, cfg.Workspace.CharacterDir, "luffy.png"), "luffy")
}
