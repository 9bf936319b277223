package daemon

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"panelcast/internal/api"
	"panelcast/internal/config"
	"panelcast/internal/poller"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/testsupport"
)

func newRoundTripPoller(t *testing.T, a testAPI) *poller.Poller {
	t.Helper()
	client, err := poller.NewClient(a.srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return poller.New(poller.Options{Client: client, Interval: 20 * time.Millisecond, LongPoll: 200 * time.Millisecond})
}

// blockedWorkspace places the workspace root under a regular file so it can
// never be created.
func blockedWorkspace(t *testing.T) testsupport.ConfigOption {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return testsupport.WithConfig(func(cfg *config.Config) {
		cfg.Paths.WorkspaceRoot = filepath.Join(blocker, "ws")
	})
}

func TestPollerRetrievesArtifactFromService(t *testing.T) {
	a := newTestAPI(t, &scriptedExecutor{})
	p := newRoundTripPoller(t, a)

	artifact, err := p.RequestAndWait(context.Background(), stage.Flags{Colorize: true}, 10*time.Second)
	if err != nil {
		t.Fatalf("RequestAndWait: %v", err)
	}
	if artifact != a.layout.Reencoded {
		t.Fatalf("expected %q, got %q", a.layout.Reencoded, artifact)
	}
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
}

func TestPollerSeesWorkspaceFailure(t *testing.T) {
	a := newTestAPI(t, &scriptedExecutor{}, blockedWorkspace(t))
	p := newRoundTripPoller(t, a)

	start := time.Now()
	_, err := p.RequestAndWait(context.Background(), stage.Flags{}, 5*time.Second)
	var failure *poller.Failure
	if !errors.As(err, &failure) || failure.Reason != poller.ReasonPipelineError {
		t.Fatalf("expected pipeline error, got %v", err)
	}
	if failure.Kind != "workspace" || failure.JobID == "" {
		t.Fatalf("unexpected failure %+v", failure)
	}
	if !errors.Is(err, services.ErrWorkspace) {
		t.Fatalf("failure should match ErrWorkspace: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("workspace failure should end the wait at once, took %s", elapsed)
	}
}

func TestWorkspaceFailureIsReportedAsFailedJob(t *testing.T) {
	a := newTestAPI(t, &scriptedExecutor{}, blockedWorkspace(t))

	var view api.JobView
	code := a.do(t, http.MethodPost, "/api/jobs", `{"is_colorization":false,"is_panel_view":false}`, &view)
	if code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if view.Status != "failed" || view.Failure == nil || view.Failure.Kind != "workspace" {
		t.Fatalf("unexpected job view %+v", view)
	}

	var lookedUp api.JobView
	if code := a.do(t, http.MethodGet, "/api/jobs/"+view.ID, "", &lookedUp); code != http.StatusOK || lookedUp.Status != "failed" {
		t.Fatalf("job should stay visible, got %d %+v", code, lookedUp)
	}

	var resp api.GenerateResponse
	code = a.do(t, http.MethodPost, "/generate-manga", `{"is_colorization":false,"is_panel_view":false}`, &resp)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.IsSuccess || resp.Status != "failed" || resp.Error == "" || resp.JobID == "" {
		t.Fatalf("unexpected generate response %+v", resp)
	}
}
