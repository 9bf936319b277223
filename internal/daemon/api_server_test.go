package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"panelcast/internal/api"
	"panelcast/internal/jobs"
	"panelcast/internal/stage"
	"panelcast/internal/testsupport"
	"panelcast/internal/workspace"
)

// scriptedExecutor fails the stages named in fail and blocks extract until
// release is closed.
type scriptedExecutor struct {
	fail    map[string]bool
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (e *scriptedExecutor) Run(ctx context.Context, def stage.Definition, vars map[string]string, flags stage.Flags) stage.Outcome {
	if !def.Active(flags) {
		return stage.Outcome{Stage: def.Name, Status: stage.StatusSkipped}
	}
	if def.Name == stage.NameExtract && e.release != nil {
		e.once.Do(func() { close(e.started) })
		select {
		case <-e.release:
		case <-ctx.Done():
			return stage.Outcome{Stage: def.Name, Status: stage.StatusFailed, Diagnostic: "cancelled"}
		}
	}
	if e.fail[def.Name] {
		return stage.Outcome{Stage: def.Name, Status: stage.StatusFailed, ExitCode: 1, Diagnostic: "voice bank empty"}
	}
	switch def.Name {
	case stage.NameAssemble:
		_ = os.WriteFile(vars["artifact"], []byte("mp4"), 0o644)
	case stage.NameReencode:
		_ = os.WriteFile(vars["reencoded"], []byte("mp4"), 0o644)
	}
	return stage.Outcome{Stage: def.Name, Status: stage.StatusSucceeded}
}

type testAPI struct {
	srv    *httptest.Server
	exec   *scriptedExecutor
	layout workspace.Layout
}

func newTestAPI(t *testing.T, exec *scriptedExecutor, opts ...testsupport.ConfigOption) testAPI {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Service.GenerateWaitSeconds = 5
	stages, reencode := stage.DefaultDefinitions(cfg)
	layout := workspace.Resolve(cfg)
	svc, err := jobs.New(jobs.Options{Layout: layout, Stages: stages, Reencode: reencode, Executor: exec})
	if err != nil {
		t.Fatalf("jobs.New: %v", err)
	}
	d, err := New(cfg, svc, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(d.api.routes())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return testAPI{srv: srv, exec: exec, layout: layout}
}

func (a testAPI) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestGenerateReturnsReencodedArtifact(t *testing.T) {
	a := newTestAPI(t, &scriptedExecutor{})

	var resp api.GenerateResponse
	code := a.do(t, http.MethodPost, "/generate-manga", `{"is_colorization":true,"is_panel_view":false}`, &resp)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !resp.IsSuccess || resp.ArtifactPath != a.layout.Reencoded || resp.Status != "succeeded" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGenerateReportsStageFailure(t *testing.T) {
	a := newTestAPI(t, &scriptedExecutor{fail: map[string]bool{"narrate": true}})

	var resp api.GenerateResponse
	code := a.do(t, http.MethodPost, "/generate-manga", `{}`, &resp)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.IsSuccess || resp.Error != "narrate: voice bank empty" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestBusyServiceReturnsConflict(t *testing.T) {
	exec := &scriptedExecutor{release: make(chan struct{}), started: make(chan struct{})}
	a := newTestAPI(t, exec)

	var view api.JobView
	if code := a.do(t, http.MethodPost, "/api/jobs", `{"is_panel_view":true}`, &view); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if view.ID == "" || !view.PanelView {
		t.Fatalf("unexpected job view %+v", view)
	}
	<-exec.started

	var resp api.GenerateResponse
	if code := a.do(t, http.MethodPost, "/generate-manga", `{}`, &resp); code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
	if resp.IsSuccess || resp.JobID != view.ID {
		t.Fatalf("unexpected busy response %+v", resp)
	}

	var errResp api.ErrorResponse
	if code := a.do(t, http.MethodDelete, "/api/workspace", "", &errResp); code != http.StatusConflict || errResp.Kind != "busy" {
		t.Fatalf("expected busy conflict on clear, got %d %+v", code, errResp)
	}

	var wait api.WaitResponse
	if code := a.do(t, http.MethodGet, "/api/jobs/"+view.ID+"/wait?timeout=20ms", "", &wait); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !wait.TimedOut || wait.Job.Status != "running" || wait.Job.Current != "extract" {
		t.Fatalf("unexpected wait response %+v", wait)
	}

	close(exec.release)
	if code := a.do(t, http.MethodGet, "/api/jobs/"+view.ID+"/wait?timeout=5s", "", &wait); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if wait.TimedOut || !wait.Job.Succeeded() {
		t.Fatalf("expected finished job, got %+v", wait)
	}

	var current api.JobView
	if code := a.do(t, http.MethodGet, "/api/jobs/current", "", &current); code != http.StatusOK || current.ID != view.ID {
		t.Fatalf("unexpected current job %d %+v", code, current)
	}
	if code := a.do(t, http.MethodDelete, "/api/workspace", "", nil); code != http.StatusNoContent {
		t.Fatalf("expected 204 after job finished, got %d", code)
	}
}

func TestUnknownJobAndEmptyService(t *testing.T) {
	a := newTestAPI(t, &scriptedExecutor{})

	var errResp api.ErrorResponse
	if code := a.do(t, http.MethodGet, "/api/jobs/missing", "", &errResp); code != http.StatusNotFound || errResp.Kind != "not_found" {
		t.Fatalf("expected 404 not_found, got %d %+v", code, errResp)
	}
	if code := a.do(t, http.MethodGet, "/api/jobs/missing/wait", "", &errResp); code != http.StatusNotFound {
		t.Fatalf("expected 404 for wait, got %d", code)
	}
	if code := a.do(t, http.MethodGet, "/api/jobs/current", "", &errResp); code != http.StatusNotFound {
		t.Fatalf("expected 404 without jobs, got %d", code)
	}
	var health map[string]string
	if code := a.do(t, http.MethodGet, "/healthz", "", &health); code != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("unexpected health %d %v", code, health)
	}
}

func TestRejectsMalformedRequests(t *testing.T) {
	a := newTestAPI(t, &scriptedExecutor{})

	var resp api.GenerateResponse
	if code := a.do(t, http.MethodPost, "/generate-manga", `{"colorize":1}`, &resp); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", code)
	}
	if !strings.Contains(resp.Error, "invalid request body") {
		t.Fatalf("unexpected error %q", resp.Error)
	}
	var errResp api.ErrorResponse
	if code := a.do(t, http.MethodGet, "/api/jobs/x/wait?timeout=soon", "", &errResp); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timeout, got %d", code)
	}
}

func TestStatusListsStagesAndJob(t *testing.T) {
	a := newTestAPI(t, &scriptedExecutor{})
	var gen api.GenerateResponse
	a.do(t, http.MethodPost, "/generate-manga", `{}`, &gen)

	var status api.DaemonStatus
	if code := a.do(t, http.MethodGet, "/api/status", "", &status); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(status.Stages) != 5 || status.Stages[4].Name != "reencode" {
		t.Fatalf("unexpected stages %+v", status.Stages)
	}
	if status.Job == nil || status.Job.ID != gen.JobID {
		t.Fatalf("expected current job in status, got %+v", status.Job)
	}
	if len(status.Dependencies) == 0 {
		t.Fatal("expected dependency report")
	}
}
