package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"panelcast/internal/api"
	"panelcast/internal/config"
	"panelcast/internal/logging"
	"panelcast/internal/stage"
)

// DefaultDeadline applies when Start is given a non-positive deadline.
const DefaultDeadline = 10 * time.Minute

// Options configures a Poller.
type Options struct {
	Client   *Client
	Interval time.Duration
	LongPoll time.Duration
	Deadline time.Duration
	Logger   *slog.Logger
}

// Poller drives submit-then-wait against the job API.
type Poller struct {
	client   *Client
	interval time.Duration
	longPoll time.Duration
	deadline time.Duration
	logger   *slog.Logger
}

// New constructs a Poller.
func New(opts Options) *Poller {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	longPoll := opts.LongPoll
	if longPoll <= 0 {
		longPoll = 30 * time.Second
	}
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Poller{
		client:   opts.Client,
		interval: interval,
		longPoll: longPoll,
		deadline: deadline,
		logger:   logging.NewComponentLogger(logger, "poller"),
	}
}

// NewFromConfig builds a Poller from the [poller] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Poller, error) {
	client, err := NewClient(cfg.Poller.ServiceURL, cfg.RequestTimeout())
	if err != nil {
		return nil, err
	}
	return New(Options{
		Client:   client,
		Interval: cfg.RetryInterval(),
		LongPoll: cfg.LongPoll(),
		Deadline: cfg.PollDeadline(),
		Logger:   logger,
	}), nil
}

// Client returns the underlying API client.
func (p *Poller) Client() *Client { return p.client }

// Task is a running submit-and-wait loop.
type Task struct {
	done     chan struct{}
	cancel   context.CancelFunc
	artifact string
	err      error
}

// Done is closed when the task has a result.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result blocks until the task finishes and returns the artifact path or a
// *Failure.
func (t *Task) Result() (string, error) {
	<-t.done
	return t.artifact, t.err
}

// Cancel stops the task. The job on the service is not cancelled.
func (t *Task) Cancel() { t.cancel() }

// Start launches the loop in the background. A non-positive deadline uses the
// poller's configured deadline.
func (p *Poller) Start(ctx context.Context, flags stage.Flags, deadline time.Duration) *Task {
	if deadline <= 0 {
		deadline = p.deadline
	}
	deadlineCtx, cancelDeadline := context.WithTimeout(ctx, deadline)
	runCtx, cancel := context.WithCancel(deadlineCtx)
	task := &Task{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer close(task.done)
		defer cancelDeadline()
		defer cancel()
		task.artifact, task.err = p.run(runCtx, flags)
	}()
	return task
}

// RequestAndWait submits a job and waits for its artifact.
func (p *Poller) RequestAndWait(ctx context.Context, flags stage.Flags, deadline time.Duration) (string, error) {
	return p.Start(ctx, flags, deadline).Result()
}

type attempt struct {
	jobID    string
	artifact string
	lastErr  error
}

func (p *Poller) run(ctx context.Context, flags stage.Flags) (string, error) {
	state := &attempt{}
	err := retry.Do(ctx, retry.NewConstant(p.interval), func(ctx context.Context) error {
		return p.step(ctx, flags, state)
	})
	if err == nil {
		return state.artifact, nil
	}

	var failure *Failure
	if errors.As(err, &failure) {
		return "", failure
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		diag := "deadline elapsed"
		if state.lastErr != nil {
			diag += "; last error: " + state.lastErr.Error()
		}
		return "", &Failure{Reason: ReasonTimeout, JobID: state.jobID, Diagnostic: diag}
	case errors.Is(err, context.Canceled):
		return "", &Failure{Reason: ReasonCancelled, JobID: state.jobID}
	default:
		return "", &Failure{Reason: ReasonRejected, JobID: state.jobID, Diagnostic: err.Error()}
	}
}

// step submits when no job is known, then long-polls it. Busy, unavailable,
// and forgotten-job responses are retryable; everything else ends the loop.
func (p *Poller) step(ctx context.Context, flags stage.Flags, state *attempt) error {
	if state.jobID == "" {
		view, err := p.client.Submit(ctx, flags)
		if err != nil {
			return p.classify(ctx, state, "submit", err)
		}
		state.jobID = view.ID
		p.logger.Info("job submitted",
			logging.String(logging.FieldJobID, view.ID),
			logging.Bool("colorize", flags.Colorize),
			logging.Bool("panel_view", flags.PanelView),
		)
		if view.Terminal() {
			if view.Succeeded() {
				state.artifact = view.Artifact
				return nil
			}
			return pipelineFailure(view)
		}
	}

	for {
		resp, err := p.client.Wait(ctx, state.jobID, p.longPoll)
		if err != nil {
			if IsNotFound(err) {
				p.logger.Warn("service no longer knows the job; resubmitting",
					logging.String(logging.FieldJobID, state.jobID),
					logging.String(logging.FieldEventType, "job_resubmit"),
				)
				state.jobID = ""
				state.lastErr = err
				return retry.RetryableError(err)
			}
			return p.classify(ctx, state, "wait", err)
		}
		if !resp.Job.Terminal() {
			p.logger.Debug("job still running",
				logging.String(logging.FieldJobID, state.jobID),
				logging.String("current", resp.Job.Current),
				logging.Int("done", resp.Job.Done),
				logging.Int("total", resp.Job.Total),
			)
			continue
		}
		if resp.Job.Succeeded() {
			state.artifact = resp.Job.Artifact
			return nil
		}
		return pipelineFailure(resp.Job)
	}
}

func (p *Poller) classify(ctx context.Context, state *attempt, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	state.lastErr = err
	switch {
	case IsBusy(err):
		p.logger.Info("service busy; retrying", logging.String("operation", op))
		return retry.RetryableError(err)
	case IsUnavailable(err):
		p.logger.Warn("service unavailable; retrying",
			logging.String("operation", op),
			logging.Error(err),
			logging.String(logging.FieldEventType, "service_unavailable"),
		)
		return retry.RetryableError(err)
	default:
		return &Failure{Reason: ReasonRejected, JobID: state.jobID, Diagnostic: err.Error()}
	}
}

func pipelineFailure(view api.JobView) *Failure {
	f := &Failure{Reason: ReasonPipelineError, JobID: view.ID, Diagnostic: "job failed"}
	if view.Failure != nil {
		f.Kind = view.Failure.Kind
		f.Stage = view.Failure.Stage
		f.Diagnostic = view.Failure.Diagnostic
	}
	return f
}
