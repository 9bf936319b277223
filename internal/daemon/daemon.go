package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"panelcast/internal/config"
	"panelcast/internal/deps"
	"panelcast/internal/jobs"
	"panelcast/internal/logging"
	"panelcast/internal/pipeline"
	"panelcast/internal/preflight"
	"panelcast/internal/stage"
)

// Daemon owns the job service and the API server and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	jobs   *jobs.Service
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	LockFilePath  string
	JournalPath   string
	WorkspaceRoot string
	Job           *pipeline.Snapshot
	Stages        []stage.Health
	Dependencies  []deps.Status
}

// New constructs a daemon around svc.
func New(cfg *config.Config, svc *jobs.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("daemon requires config and job service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		jobs:     svc,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and starts the API listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(d.cfg.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another panelcast daemon instance is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := d.api.start(ctx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("panelcast daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
	)
	return nil
}

// Stop shuts the API down, cancels any running job, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.KillGrace()+5*time.Second)
	defer cancel()
	if err := d.jobs.Shutdown(ctx); err != nil {
		d.logger.Warn("running job did not stop in time",
			logging.Error(err),
			logging.String(logging.FieldEventType, "shutdown_timeout"),
			logging.String(logging.FieldImpact, "a stage process may outlive the daemon"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("panelcast daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Addr returns the API listener address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Jobs exposes the job service.
func (d *Daemon) Jobs() *jobs.Service {
	return d.jobs
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		LockFilePath:  d.lockPath,
		JournalPath:   d.cfg.JournalPath(),
		WorkspaceRoot: d.cfg.Paths.WorkspaceRoot,
		Dependencies:  preflight.CheckSystemDeps(d.cfg),
	}
	if snap, ok := d.jobs.Current(); ok {
		status.Job = &snap
	}
	if health, err := stage.CheckAll(d.cfg); err == nil {
		status.Stages = health
	}
	return status
}
