package daemon_test

import (
	"context"
	"net/http"
	"testing"

	"panelcast/internal/daemon"
	"panelcast/internal/jobs"
	"panelcast/internal/testsupport"
)

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	svc, err := jobs.NewFromConfig(cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("jobs.NewFromConfig: %v", err)
	}
	d, err := daemon.New(cfg, svc, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Status(ctx).Running {
		t.Fatal("expected daemon to report running")
	}

	resp, err := http.Get("http://" + d.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected healthz status %d", resp.StatusCode)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	start := func() (*daemon.Daemon, error) {
		svc, err := jobs.NewFromConfig(cfg, nil, nil, nil)
		if err != nil {
			t.Fatalf("jobs.NewFromConfig: %v", err)
		}
		d, err := daemon.New(cfg, svc, nil)
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		return d, d.Start(context.Background())
	}

	first, err := start()
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer first.Close()

	second, err := start()
	if err == nil {
		second.Close()
		t.Fatal("expected lock contention")
	}
}
