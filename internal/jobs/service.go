package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"panelcast/internal/config"
	"panelcast/internal/logging"
	"panelcast/internal/notifications"
	"panelcast/internal/pipeline"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/workspace"
)

var (
	// ErrJobRunning rejects a submission or clear while a job is in flight.
	ErrJobRunning = errors.New("a job is already running")
	// ErrUnknownJob is returned for identifiers this service never issued.
	ErrUnknownJob = errors.New("unknown job")
	// ErrClosed is returned after Shutdown.
	ErrClosed = fmt.Errorf("%w: job service shut down", services.ErrServiceUnavailable)
)

// historyLimit bounds the finished jobs kept for Lookup.
const historyLimit = 8

// Handle identifies a submitted job.
type Handle string

// Result is what Await observed.
type Result struct {
	Snapshot pipeline.Snapshot
	// TimedOut is set when the deadline elapsed first; the job keeps running.
	TimedOut bool
}

// Journal records job progress and is reset before every submission.
type Journal interface {
	pipeline.Recorder
	Reset(ctx context.Context) error
}

// Options configures New.
type Options struct {
	Layout   workspace.Layout
	Stages   []stage.Definition
	Reencode stage.Definition
	Executor pipeline.StageRunner
	Verify   pipeline.VerifyFunc
	Journal  Journal
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Service runs at most one job at a time.
type Service struct {
	layout   workspace.Layout
	runner   *pipeline.Runner
	journal  Journal
	notifier notifications.Service
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	current *pipeline.Job
	jobs    map[string]*pipeline.Job
	order   []string
	closed  bool
}

// New constructs a Service. The returned service owns a background context
// that is cancelled by Shutdown.
func New(opts Options) (*Service, error) {
	if opts.Executor == nil {
		return nil, errors.New("job service requires a stage executor")
	}
	if len(opts.Stages) == 0 {
		return nil, errors.New("job service requires at least one stage")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}

	runnerOpts := pipeline.Options{
		Stages:   opts.Stages,
		Reencode: opts.Reencode,
		Executor: opts.Executor,
		Layout:   opts.Layout,
		Verify:   opts.Verify,
		Logger:   logger,
	}
	if opts.Journal != nil {
		runnerOpts.Recorder = opts.Journal
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		layout:   opts.Layout,
		runner:   pipeline.NewRunner(runnerOpts),
		journal:  opts.Journal,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "jobs"),
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*pipeline.Job),
	}, nil
}

// NewFromConfig wires the executor, stage list, and verifier from cfg.
func NewFromConfig(cfg *config.Config, journal Journal, notifier notifications.Service, logger *slog.Logger) (*Service, error) {
	defs, reencode, err := stage.Load(cfg)
	if err != nil {
		return nil, err
	}
	executor := stage.NewExecutor(stage.ExecutorOptions{
		MaxStderrBytes: cfg.MaxStderrBytes(),
		KillGrace:      cfg.KillGrace(),
		Logger:         logger,
	})
	var verify pipeline.VerifyFunc
	if cfg.Reencode.Verify {
		verify = pipeline.ProbeVerifier(cfg.Tools.FFprobe)
	}
	return New(Options{
		Layout:   workspace.Resolve(cfg),
		Stages:   defs,
		Reencode: reencode,
		Executor: executor,
		Verify:   verify,
		Journal:  journal,
		Notifier: notifier,
		Logger:   logger,
	})
}

// Layout returns the workspace layout jobs run against.
func (s *Service) Layout() workspace.Layout { return s.layout }

// Plan returns the stage names in execution order.
func (s *Service) Plan() []string { return s.runner.Plan() }

// Submit starts a job with flags. The job runs on the service context, so
// cancelling ctx after Submit returns has no effect on it. When the
// workspace cannot be prepared the job is recorded as failed and its handle is
// returned together with an ErrWorkspace-wrapped error.
func (s *Service) Submit(ctx context.Context, flags stage.Flags) (Handle, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	if s.current != nil && !s.current.Snapshot().Status.Terminal() {
		id := s.current.ID()
		s.mu.Unlock()
		return Handle(id), ErrJobRunning
	}
	job := pipeline.NewJob(flags, s.layout.Root)
	s.track(job)
	s.wg.Add(1)
	s.mu.Unlock()

	ctx = services.WithJobID(ctx, job.ID())
	logger := logging.WithContext(ctx, s.logger)

	if s.journal != nil {
		if err := s.journal.Reset(ctx); err != nil {
			logger.Warn("journal reset failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "journal_reset_failed"),
				logging.String(logging.FieldImpact, "status fallback may show a previous job"),
			)
		}
	}

	if err := workspace.Prepare(s.layout); err != nil {
		job.Abort(err)
		if s.journal != nil {
			if jerr := s.journal.JobFinished(ctx, job.Snapshot()); jerr != nil {
				logger.Warn("journal write failed", logging.Error(jerr))
			}
		}
		logging.ErrorWithContext(logger, "workspace preparation failed", "job_failure",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check workspace_root permissions and free space"),
		)
		s.publish(logger, notifications.EventJobFailed, notifications.Payload{
			"job_id": job.ID(),
			"stage":  "workspace",
			"error":  err,
		})
		s.wg.Done()
		return Handle(job.ID()), err
	}

	go s.run(job)
	return Handle(job.ID()), nil
}

func (s *Service) run(job *pipeline.Job) {
	defer s.wg.Done()
	ctx := services.WithJobID(s.ctx, job.ID())
	logger := logging.WithContext(ctx, s.logger)

	flags := job.Flags()
	s.publish(logger, notifications.EventJobStarted, notifications.Payload{
		"job_id":     job.ID(),
		"colorize":   flags.Colorize,
		"panel_view": flags.PanelView,
	})

	if err := s.runner.Run(ctx, job); err != nil {
		snap := job.Snapshot()
		reason := err.Error()
		stageName := ""
		if snap.Failure != nil {
			reason = snap.Failure.Diagnostic
			stageName = snap.Failure.Stage
		}
		s.publish(logger, notifications.EventJobFailed, notifications.Payload{
			"job_id": job.ID(),
			"stage":  stageName,
			"error":  reason,
		})
		return
	}

	snap := job.Snapshot()
	s.publish(logger, notifications.EventJobSucceeded, notifications.Payload{
		"job_id":   job.ID(),
		"artifact": snap.Artifact,
		"duration": snap.FinishedAt.Sub(snap.StartedAt),
	})
}

// publish sends a notification without letting it fail the job. Shutdown
// cancels s.ctx, so delivery uses a context detached from it.
func (s *Service) publish(logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	ctx := context.WithoutCancel(s.ctx)
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

// Await blocks until the job is terminal, deadline elapses, or ctx ends. A
// non-positive deadline waits without limit.
func (s *Service) Await(ctx context.Context, handle Handle, deadline time.Duration) (Result, error) {
	job := s.lookup(string(handle))
	if job == nil {
		return Result{}, ErrUnknownJob
	}

	var expired <-chan time.Time
	if deadline > 0 {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-job.Done():
		return Result{Snapshot: job.Snapshot()}, nil
	case <-expired:
		return Result{Snapshot: job.Snapshot(), TimedOut: true}, nil
	case <-ctx.Done():
		return Result{Snapshot: job.Snapshot()}, ctx.Err()
	}
}

// Current returns the most recently submitted job.
func (s *Service) Current() (pipeline.Snapshot, bool) {
	s.mu.Lock()
	job := s.current
	s.mu.Unlock()
	if job == nil {
		return pipeline.Snapshot{}, false
	}
	return job.Snapshot(), true
}

// Lookup returns the snapshot of a job submitted to this service.
func (s *Service) Lookup(id string) (pipeline.Snapshot, bool) {
	job := s.lookup(id)
	if job == nil {
		return pipeline.Snapshot{}, false
	}
	return job.Snapshot(), true
}

// Running reports whether a job is in flight.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && !s.current.Snapshot().Status.Terminal()
}

// Clear empties every workspace directory and the journal. It is rejected
// while a job runs.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && !s.current.Snapshot().Status.Terminal() {
		return ErrJobRunning
	}
	if err := workspace.Clear(s.layout); err != nil {
		return err
	}
	if s.journal != nil {
		if err := s.journal.Reset(ctx); err != nil {
			return fmt.Errorf("reset journal: %w", err)
		}
	}
	s.logger.Info("workspace cleared",
		logging.String(logging.FieldEventType, "workspace_cleared"),
		logging.String("root", s.layout.Root),
	)
	return nil
}

// Shutdown cancels any running job, which terminates the active stage's
// process group, and waits for the runner to return or ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for running job: %v", services.ErrTimeout, ctx.Err())
	}
}

func (s *Service) lookup(id string) *pipeline.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// track must be called with s.mu held.
func (s *Service) track(job *pipeline.Job) {
	s.current = job
	s.jobs[job.ID()] = job
	s.order = append(s.order, job.ID())
	for len(s.order) > historyLimit {
		delete(s.jobs, s.order[0])
		s.order = s.order[1:]
	}
}
