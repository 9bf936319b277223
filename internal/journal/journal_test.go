package journal_test

import (
	"context"
	"path/filepath"
	"testing"

	"panelcast/internal/journal"
	"panelcast/internal/pipeline"
	"panelcast/internal/stage"
	"panelcast/internal/testsupport"
	"panelcast/internal/workspace"
)

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), ".panelcast", "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestLatestOnEmptyJournal(t *testing.T) {
	j := openJournal(t)
	_, ok, err := j.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if ok {
		t.Fatal("expected empty journal")
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	first, err := journal.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = first.Close()
	second, err := journal.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = second.Close()
}

func TestJournalRecordsFailedRun(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	cfg := testsupport.NewConfig(t, testsupport.WithStageBehavior("narrate", testsupport.Behavior{
		ExitCode: 1,
		Stderr:   "voice bank empty",
	}))
	testsupport.SeedInputs(t, cfg)
	layout := workspace.Resolve(cfg)
	if err := workspace.Prepare(layout); err != nil {
		t.Fatal(err)
	}
	stages, reencode := stage.DefaultDefinitions(cfg)
	runner := pipeline.NewRunner(pipeline.Options{
		Stages:   stages,
		Reencode: reencode,
		Executor: stage.NewExecutor(stage.ExecutorOptions{}),
		Layout:   layout,
		Recorder: j,
	})
	job := pipeline.NewJob(stage.Flags{PanelView: true}, layout.Root)
	if err := runner.Run(ctx, job); err == nil {
		t.Fatal("expected run to fail")
	}

	snap, ok, err := j.Latest(ctx)
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if snap.ID != job.ID() || snap.Status != pipeline.StatusFailed {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !snap.Flags.PanelView || snap.Flags.Colorize {
		t.Fatalf("flags not persisted: %+v", snap.Flags)
	}
	if snap.Failure == nil || snap.Failure.Stage != "narrate" || snap.Failure.Diagnostic != "voice bank empty" {
		t.Fatalf("unexpected failure %+v", snap.Failure)
	}
	if len(snap.Outcomes) != 3 {
		t.Fatalf("expected three outcomes, got %d", len(snap.Outcomes))
	}
	if snap.Outcomes[1].Status != stage.StatusSkipped || snap.Outcomes[2].ExitCode != 1 {
		t.Fatalf("unexpected outcomes %+v", snap.Outcomes)
	}
	if len(snap.Plan) != 5 || snap.Progress().Done != 3 {
		t.Fatalf("unexpected plan/progress %v", snap.Plan)
	}

	if err := j.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, ok, _ := j.Latest(ctx); ok {
		t.Fatal("expected journal to be empty after reset")
	}
}
