package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"panelcast/internal/api"
	"panelcast/internal/config"
	"panelcast/internal/testsupport"
)

func TestRunCommandProducesArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTools())
	cfg.Poller.ServiceURL = unreachableURL(t)
	testsupport.SeedInputs(t, cfg)
	configPath := writeTestConfig(t, cfg)

	stdout, _, err := runCLI(t, configPath, "run", "--colorize", "--json")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stdout)
	}
	var view api.JobView
	if err := json.Unmarshal([]byte(stdout), &view); err != nil {
		t.Fatalf("decode run output: %v\n%s", err, stdout)
	}
	if !view.Succeeded() || view.Done != view.Total {
		t.Fatalf("unexpected job %+v", view)
	}
	if _, err := os.Stat(view.Artifact); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}

	// With the daemon down, status falls back to the journal.
	stdout, _, err = runCLI(t, configPath, "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(stdout), &status); err != nil {
		t.Fatalf("decode status: %v\n%s", err, stdout)
	}
	if status.Running {
		t.Fatal("daemon should be reported as not running")
	}
	if status.Job == nil || status.Job.ID != view.ID || status.Job.Artifact != view.Artifact {
		t.Fatalf("status should show the journaled job, got %+v", status.Job)
	}

	stdout, _, err = runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status table: %v", err)
	}
	for _, want := range []string{"not running", "Colorize", "succeeded"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("status output missing %q:\n%s", want, stdout)
		}
	}
}

func TestRunCommandReportsStageFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStageBehavior("narrate", testsupport.Behavior{ExitCode: 3, Stderr: "voice bank empty"}))
	testsupport.SeedInputs(t, cfg)
	configPath := writeTestConfig(t, cfg)

	stdout, _, err := runCLI(t, configPath, "run")
	if err == nil || !strings.Contains(err.Error(), "voice bank empty") {
		t.Fatalf("expected narrate failure, got %v", err)
	}
	if !strings.Contains(stdout, "Narrate") {
		t.Fatalf("stage table missing failed stage:\n%s", stdout)
	}
}

func TestRunCommandRefusesWhileDaemonHoldsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTools())
	configPath := writeTestConfig(t, cfg)
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("take lock: locked=%v err=%v", locked, err)
	}
	defer func() { _ = lock.Unlock() }()

	_, _, err = runCLI(t, configPath, "run")
	if err == nil || !strings.Contains(err.Error(), "holds") {
		t.Fatalf("expected lock refusal, got %v", err)
	}
}

func TestGenerateCommandPollsDaemon(t *testing.T) {
	var submitted api.GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/jobs":
			_ = json.NewDecoder(r.Body).Decode(&submitted)
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(api.JobView{ID: "job-9", Status: "running"})
		case strings.HasSuffix(r.URL.Path, "/wait"):
			_ = json.NewEncoder(w).Encode(api.WaitResponse{Job: api.JobView{ID: "job-9", Status: "succeeded", Artifact: "/ws/final/video_reencoded.mp4"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithConfig(func(c *config.Config) {
		c.Poller.ServiceURL = srv.URL
		c.Poller.RetryIntervalSeconds = 1
	}))
	configPath := writeTestConfig(t, cfg)

	stdout, _, err := runCLI(t, configPath, "generate", "--panel-view", "--deadline", "5s")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.TrimSpace(stdout) != "/ws/final/video_reencoded.mp4" {
		t.Fatalf("unexpected output %q", stdout)
	}
	if submitted.IsColorization || !submitted.IsPanelView {
		t.Fatalf("flags not forwarded: %+v", submitted)
	}
}

func TestWorkspaceStageAndShow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)
	src := t.TempDir()
	page := filepath.Join(src, "001.png")
	hero := filepath.Join(src, "hero.jpg")
	testsupport.WriteFile(t, page, "page")
	testsupport.WriteFile(t, hero, "hero")

	stdout, _, err := runCLI(t, configPath, "workspace", "stage", page, "--character", hero, "--names", "Luffy, Zoro")
	if err != nil {
		t.Fatalf("workspace stage: %v", err)
	}
	if !strings.Contains(stdout, "Staged 1 page(s) and 1 character reference(s)") {
		t.Fatalf("unexpected stage output %q", stdout)
	}
	names, err := os.ReadFile(filepath.Join(cfg.Paths.WorkspaceRoot, cfg.Workspace.CharacterDir, "character_names.txt"))
	if err != nil || string(names) != "Luffy,Zoro" {
		t.Fatalf("unexpected names file %q err=%v", names, err)
	}

	stdout, _, err = runCLI(t, configPath, "workspace", "show")
	if err != nil {
		t.Fatalf("workspace show: %v", err)
	}
	if !strings.Contains(stdout, "Voice Bank") || !strings.Contains(stdout, "Raw") {
		t.Fatalf("unexpected show output:\n%s", stdout)
	}

	_, _, err = runCLI(t, configPath, "workspace", "stage", filepath.Join(src, "notes.txt"))
	if err == nil {
		t.Fatal("expected non-image page to be rejected")
	}
}

func TestWorkspaceClearFallsBackToLocal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Poller.ServiceURL = unreachableURL(t)
	testsupport.SeedInputs(t, cfg)
	configPath := writeTestConfig(t, cfg)

	stdout, _, err := runCLI(t, configPath, "workspace", "clear")
	if err != nil {
		t.Fatalf("workspace clear: %v", err)
	}
	if !strings.Contains(stdout, "Workspace cleared:") {
		t.Fatalf("expected local clear, got %q", stdout)
	}
	entries, err := os.ReadDir(filepath.Join(cfg.Paths.WorkspaceRoot, cfg.Workspace.RawDir))
	if err != nil || len(entries) != 0 {
		t.Fatalf("raw dir should be empty, got %d entries err=%v", len(entries), err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PANELCAST_WORKSPACE", "")
	t.Setenv("PANELCAST_SERVICE_URL", "")
	path := filepath.Join(t.TempDir(), "panelcast.toml")

	if _, _, err := runCLI(t, "", "config", "init", "--path", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", path); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	stdout, _, err := runCLI(t, path, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(stdout, "Configuration valid") || !strings.Contains(stdout, path) {
		t.Fatalf("unexpected validate output %q", stdout)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)
	stdout, _, err := runCLI(t, configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(stdout, "Notifications disabled") {
		t.Fatalf("unexpected output %q", stdout)
	}
}

func TestStageLabel(t *testing.T) {
	cases := map[string]string{
		"narrate":    "Narrate",
		"voice_bank": "Voice Bank",
		"":           "",
	}
	for in, want := range cases {
		if got := stageLabel(in); got != want {
			t.Fatalf("stageLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
