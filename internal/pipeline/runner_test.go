package pipeline_test

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"

	"panelcast/internal/pipeline"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/testsupport"
	"panelcast/internal/workspace"
)

type fakeExecutor struct {
	mu         sync.Mutex
	calls      []string
	fail       map[string]bool
	noArtifact bool
}

func (f *fakeExecutor) Run(_ context.Context, def stage.Definition, vars map[string]string, flags stage.Flags) stage.Outcome {
	if !def.Active(flags) {
		return stage.Outcome{Stage: def.Name, Status: stage.StatusSkipped}
	}
	f.mu.Lock()
	f.calls = append(f.calls, def.Name)
	f.mu.Unlock()
	if f.fail[def.Name] {
		return stage.Outcome{Stage: def.Name, Status: stage.StatusFailed, Diagnostic: def.Name + " exploded", ExitCode: 2}
	}
	switch def.Name {
	case stage.NameAssemble:
		if !f.noArtifact {
			_ = os.WriteFile(vars["artifact"], []byte("mp4"), 0o644)
		}
	case stage.NameReencode:
		_ = os.WriteFile(vars["reencoded"], []byte("mp4"), 0o644)
	}
	return stage.Outcome{Stage: def.Name, Status: stage.StatusSucceeded}
}

type memoryRecorder struct {
	mu       sync.Mutex
	started  int
	stages   []string
	seqs     []int
	finished []pipeline.Status
}

func (m *memoryRecorder) JobStarted(context.Context, pipeline.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
	return nil
}

func (m *memoryRecorder) StageRecorded(_ context.Context, _ string, seq int, o stage.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, o.Stage)
	m.seqs = append(m.seqs, seq)
	return nil
}

func (m *memoryRecorder) JobFinished(_ context.Context, snap pipeline.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, snap.Status)
	return nil
}

func newRunner(t *testing.T, exec pipeline.StageRunner, opts ...func(*pipeline.Options)) (*pipeline.Runner, workspace.Layout) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	layout := workspace.Resolve(cfg)
	if err := workspace.Prepare(layout); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	stages, reencode := stage.DefaultDefinitions(cfg)
	o := pipeline.Options{Stages: stages, Reencode: reencode, Executor: exec, Layout: layout}
	for _, opt := range opts {
		opt(&o)
	}
	return pipeline.NewRunner(o), layout
}

func TestRunSucceedsWithReencodedArtifact(t *testing.T) {
	exec := &fakeExecutor{}
	runner, layout := newRunner(t, exec)
	job := pipeline.NewJob(stage.Flags{}, layout.Root)

	if err := runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	snap := job.Snapshot()
	if snap.Status != pipeline.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", snap.Status)
	}
	if snap.Artifact != layout.Reencoded {
		t.Fatalf("expected re-encoded artifact, got %q", snap.Artifact)
	}
	want := []string{"extract", "narrate", "assemble", "reencode"}
	if !reflect.DeepEqual(exec.calls, want) {
		t.Fatalf("unexpected invocation order %v", exec.calls)
	}
	var order []string
	for _, o := range snap.Outcomes {
		order = append(order, o.Stage)
	}
	if !reflect.DeepEqual(order, []string{"extract", "colorize", "narrate", "assemble", "reencode"}) {
		t.Fatalf("outcomes out of order: %v", order)
	}
	if snap.Outcomes[1].Status != stage.StatusSkipped {
		t.Fatalf("expected colorize skipped, got %s", snap.Outcomes[1].Status)
	}
	select {
	case <-job.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
}

func TestRequiredFailureStopsPipeline(t *testing.T) {
	exec := &fakeExecutor{fail: map[string]bool{"narrate": true}}
	runner, layout := newRunner(t, exec)
	job := pipeline.NewJob(stage.Flags{Colorize: true}, layout.Root)

	err := runner.Run(context.Background(), job)
	if !errors.Is(err, services.ErrStageFailure) {
		t.Fatalf("expected stage failure, got %v", err)
	}
	if !reflect.DeepEqual(exec.calls, []string{"extract", "colorize", "narrate"}) {
		t.Fatalf("later stages must not run: %v", exec.calls)
	}
	snap := job.Snapshot()
	if snap.Status != pipeline.StatusFailed || snap.Failure == nil || snap.Failure.Stage != "narrate" {
		t.Fatalf("unexpected failure record %+v", snap.Failure)
	}
	first, ok := snap.FirstFailure()
	if !ok || first.Diagnostic != "narrate exploded" {
		t.Fatalf("unexpected first failure %+v", first)
	}
	if snap.Artifact != "" {
		t.Fatalf("failed job must not carry an artifact, got %q", snap.Artifact)
	}
}

func TestOptionalFailureIsBypassed(t *testing.T) {
	exec := &fakeExecutor{fail: map[string]bool{"colorize": true}}
	runner, layout := newRunner(t, exec)
	job := pipeline.NewJob(stage.Flags{Colorize: true}, layout.Root)

	if err := runner.Run(context.Background(), job); err != nil {
		t.Fatalf("optional failure must not fail the job: %v", err)
	}
	snap := job.Snapshot()
	if snap.Status != pipeline.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", snap.Status)
	}
	if snap.Outcomes[1].Stage != "colorize" || snap.Outcomes[1].Status != stage.StatusFailed {
		t.Fatalf("expected recorded colorize failure, got %+v", snap.Outcomes[1])
	}
	if _, ok := snap.FirstFailure(); ok {
		t.Fatal("optional failure must not be reported as the job failure")
	}
}

func TestMissingArtifactFailsPostCondition(t *testing.T) {
	exec := &fakeExecutor{noArtifact: true}
	runner, layout := newRunner(t, exec)
	job := pipeline.NewJob(stage.Flags{}, layout.Root)

	err := runner.Run(context.Background(), job)
	if !errors.Is(err, services.ErrPostCondition) {
		t.Fatalf("expected post-condition failure, got %v", err)
	}
	for _, call := range exec.calls {
		if call == "reencode" {
			t.Fatal("reencode must not run without an artifact")
		}
	}
	snap := job.Snapshot()
	if snap.Failure == nil || snap.Failure.Kind != "post_condition" {
		t.Fatalf("unexpected failure %+v", snap.Failure)
	}
}

func TestVerificationFailureFailsJob(t *testing.T) {
	exec := &fakeExecutor{}
	runner, layout := newRunner(t, exec, func(o *pipeline.Options) {
		o.Verify = func(context.Context, string) error { return errors.New("no video stream") }
	})
	job := pipeline.NewJob(stage.Flags{}, layout.Root)

	err := runner.Run(context.Background(), job)
	if !errors.Is(err, services.ErrPostCondition) || !strings.Contains(err.Error(), "no video stream") {
		t.Fatalf("expected verification failure, got %v", err)
	}
}

func TestRecorderReceivesEvents(t *testing.T) {
	rec := &memoryRecorder{}
	runner, layout := newRunner(t, &fakeExecutor{}, func(o *pipeline.Options) { o.Recorder = rec })
	job := pipeline.NewJob(stage.Flags{}, layout.Root)
	if err := runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.started != 1 || len(rec.finished) != 1 || rec.finished[0] != pipeline.StatusSucceeded {
		t.Fatalf("unexpected job events: started=%d finished=%v", rec.started, rec.finished)
	}
	if !reflect.DeepEqual(rec.seqs, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("unexpected sequence numbers %v", rec.seqs)
	}
}

func TestRunWithStubTools(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTools(), testsupport.WithProbe("video", "audio"))
	testsupport.SeedInputs(t, cfg)
	layout := workspace.Resolve(cfg)
	if err := workspace.Prepare(layout); err != nil {
		t.Fatal(err)
	}
	stages, reencode := stage.DefaultDefinitions(cfg)
	runner := pipeline.NewRunner(pipeline.Options{
		Stages:   stages,
		Reencode: reencode,
		Executor: stage.NewExecutor(stage.ExecutorOptions{MaxStderrBytes: cfg.MaxStderrBytes()}),
		Layout:   layout,
		Verify:   pipeline.ProbeVerifier(cfg.Tools.FFprobe),
	})
	job := pipeline.NewJob(stage.Flags{Colorize: true, PanelView: true}, layout.Root)

	if err := runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := testsupport.CalledStages(t, cfg)
	if !reflect.DeepEqual(got, []string{"extract", "colorize", "narrate", "assemble", "reencode"}) {
		t.Fatalf("unexpected stages %v", got)
	}
	calls := testsupport.Calls(t, cfg)
	if !strings.Contains(calls[3], "-i "+layout.Colorized) || !strings.HasSuffix(calls[3], "--panel_view") {
		t.Fatalf("assemble must read colorized pages with panel view: %q", calls[3])
	}
	if job.Snapshot().Artifact != layout.Reencoded {
		t.Fatalf("unexpected artifact %q", job.Snapshot().Artifact)
	}
}

func TestAbortMarksPendingJobFailed(t *testing.T) {
	job := pipeline.NewJob(stage.Flags{}, "/tmp/ws")
	job.Abort(services.Wrap(services.ErrWorkspace, "workspace", "prepare", "disk full", nil))
	snap := job.Snapshot()
	if snap.Status != pipeline.StatusFailed || snap.Failure.Kind != "workspace" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	job.Abort(errors.New("second abort"))
	if job.Snapshot().Failure.Kind != "workspace" {
		t.Fatal("terminal job must not change")
	}
}
