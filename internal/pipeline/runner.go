package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"panelcast/internal/fileutil"
	"panelcast/internal/logging"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/workspace"
)

// StageRunner executes a single stage definition.
type StageRunner interface {
	Run(ctx context.Context, def stage.Definition, vars map[string]string, flags stage.Flags) stage.Outcome
}

// Recorder receives job events as they happen. The journal implements it.
type Recorder interface {
	JobStarted(ctx context.Context, snap Snapshot) error
	StageRecorded(ctx context.Context, jobID string, seq int, outcome stage.Outcome) error
	JobFinished(ctx context.Context, snap Snapshot) error
}

// VerifyFunc inspects the re-encoded artifact.
type VerifyFunc func(ctx context.Context, path string) error

// Options configures a Runner.
type Options struct {
	Stages   []stage.Definition
	Reencode stage.Definition
	Executor StageRunner
	Layout   workspace.Layout
	Recorder Recorder
	Verify   VerifyFunc
	Logger   *slog.Logger
}

// Runner drives a job through the stage list, the artifact post-condition,
// and the re-encode step.
type Runner struct {
	stages   []stage.Definition
	reencode stage.Definition
	exec     StageRunner
	layout   workspace.Layout
	recorder Recorder
	verify   VerifyFunc
	logger   *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		stages:   append([]stage.Definition(nil), opts.Stages...),
		reencode: opts.Reencode,
		exec:     opts.Executor,
		layout:   opts.Layout,
		recorder: opts.Recorder,
		verify:   opts.Verify,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Plan returns the stage names in execution order.
func (r *Runner) Plan() []string {
	names := make([]string, 0, len(r.stages)+1)
	for _, def := range r.stages {
		names = append(names, def.Name)
	}
	return append(names, r.reencode.Name)
}

// Run executes job to a terminal status. The returned error wraps
// services.ErrStageFailure or services.ErrPostCondition and matches the
// failure stored on the job.
func (r *Runner) Run(ctx context.Context, job *Job) error {
	ctx = services.WithJobID(ctx, job.ID())
	logger := logging.WithContext(ctx, r.logger)
	flags := job.Flags()

	job.begin(r.Plan())
	r.notifyStarted(ctx, logger, job)
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.Bool("colorize", flags.Colorize),
		logging.Bool("panel_view", flags.PanelView),
	)

	vars := workspace.Vars(r.layout, flags)
	for _, def := range r.stages {
		outcome := r.runStage(ctx, job, def, vars, flags)
		if !outcome.Failed() {
			continue
		}
		if def.Optional {
			logging.WarnWithContext(logging.WithContext(services.WithStage(ctx, def.Name), r.logger),
				"optional stage failed; continuing", "stage_failure",
				logging.Alert("optional_stage_failed"),
				logging.String("diagnostic", outcome.Diagnostic),
				logging.String(logging.FieldImpact, "video is assembled without this stage's output"),
			)
			continue
		}
		return r.fail(ctx, logger, job, services.ErrStageFailure, def.Name, outcome.Diagnostic)
	}

	if !fileutil.Exists(r.layout.Artifact) {
		return r.fail(ctx, logger, job, services.ErrPostCondition, "",
			"final artifact missing: "+r.layout.Artifact)
	}

	outcome := r.runStage(ctx, job, r.reencode, vars, flags)
	if outcome.Failed() {
		return r.fail(ctx, logger, job, services.ErrStageFailure, r.reencode.Name, outcome.Diagnostic)
	}
	if !fileutil.Exists(r.layout.Reencoded) {
		return r.fail(ctx, logger, job, services.ErrPostCondition, r.reencode.Name,
			"re-encoded artifact missing: "+r.layout.Reencoded)
	}
	if r.verify != nil {
		if err := r.verify(ctx, r.layout.Reencoded); err != nil {
			return r.fail(ctx, logger, job, services.ErrPostCondition, r.reencode.Name,
				"re-encoded artifact failed verification: "+err.Error())
		}
	}

	job.finish(StatusSucceeded, r.layout.Reencoded, nil)
	r.notifyFinished(ctx, logger, job)
	logger.Info("job succeeded",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("artifact", r.layout.Reencoded),
	)
	return nil
}

func (r *Runner) runStage(ctx context.Context, job *Job, def stage.Definition, vars map[string]string, flags stage.Flags) stage.Outcome {
	stageCtx := services.WithStage(ctx, def.Name)
	logger := logging.WithContext(stageCtx, r.logger)

	if def.Active(flags) {
		logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	}
	outcome := r.exec.Run(stageCtx, def, vars, flags)
	seq := job.record(outcome)

	if r.recorder != nil {
		if err := r.recorder.StageRecorded(stageCtx, job.ID(), seq, outcome); err != nil {
			logger.Warn("journal write failed", logging.Error(err))
		}
	}

	switch outcome.Status {
	case stage.StatusSucceeded:
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("duration", outcome.Duration()),
		)
	case stage.StatusSkipped:
		logger.Info("stage skipped",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("reason", outcome.Diagnostic),
		)
	case stage.StatusFailed:
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.Int("exit_code", outcome.ExitCode),
			logging.Bool("optional", def.Optional),
			logging.String("diagnostic", outcome.Diagnostic),
		)
	}
	return outcome
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, job *Job, marker error, stageName, diagnostic string) error {
	err := services.Wrap(marker, stageName, "", diagnostic, nil)
	job.finish(StatusFailed, "", &Failure{
		Kind:       services.Kind(err),
		Stage:      stageName,
		Diagnostic: diagnostic,
	})
	r.notifyFinished(ctx, logger, job)
	logging.ErrorWithContext(logger, "job failed", "job_failure",
		logging.String(logging.FieldStage, stageName),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, fmt.Sprintf("inspect the %s stage diagnostic", stageOrPipeline(stageName))),
	)
	return err
}

func (r *Runner) notifyStarted(ctx context.Context, logger *slog.Logger, job *Job) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.JobStarted(ctx, job.Snapshot()); err != nil {
		logger.Warn("journal write failed", logging.Error(err))
	}
}

func (r *Runner) notifyFinished(ctx context.Context, logger *slog.Logger, job *Job) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.JobFinished(ctx, job.Snapshot()); err != nil {
		logger.Warn("journal write failed", logging.Error(err))
	}
}

func stageOrPipeline(name string) string {
	if name == "" {
		return "assemble"
	}
	return name
}
