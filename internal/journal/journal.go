package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"panelcast/internal/pipeline"
	"panelcast/internal/stage"
)

// Journal persists the current job and its stage outcomes so the last run can
// be inspected when the daemon is down. It never holds more than one job.
type Journal struct {
	db   *sql.DB
	path string
}

var _ pipeline.Recorder = (*Journal)(nil)

// Open creates or opens the journal database at path and applies migrations.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	j := &Journal{db: db, path: path}
	if err := j.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database file location.
func (j *Journal) Path() string { return j.path }

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Reset removes every recorded job.
func (j *Journal) Reset(ctx context.Context) error {
	for _, stmt := range []string{"DELETE FROM stage_outcomes", "DELETE FROM jobs"} {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset journal: %w", err)
		}
	}
	return nil
}

// JobStarted records a job entering the running state.
func (j *Journal) JobStarted(ctx context.Context, snap pipeline.Snapshot) error {
	return j.upsertJob(ctx, snap)
}

// JobFinished records a job's terminal state.
func (j *Journal) JobFinished(ctx context.Context, snap pipeline.Snapshot) error {
	return j.upsertJob(ctx, snap)
}

// StageRecorded appends one outcome.
func (j *Journal) StageRecorded(ctx context.Context, jobID string, seq int, o stage.Outcome) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO stage_outcomes (
            job_id, seq, stage, status, diagnostic, output_path, exit_code, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		jobID,
		seq,
		o.Stage,
		string(o.Status),
		nullableString(o.Diagnostic),
		nullableString(o.OutputPath),
		o.ExitCode,
		formatTime(o.StartedAt),
		formatTime(o.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert stage outcome: %w", err)
	}
	return nil
}

func (j *Journal) upsertJob(ctx context.Context, snap pipeline.Snapshot) error {
	plan, err := json.Marshal(snap.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	var kind, failedStage, diagnostic sql.NullString
	if snap.Failure != nil {
		kind = nullableString(snap.Failure.Kind)
		failedStage = nullableString(snap.Failure.Stage)
		diagnostic = nullableString(snap.Failure.Diagnostic)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO jobs (
            id, colorize, panel_view, root, plan_json, status, artifact,
            failure_kind, failure_stage, failure_diagnostic,
            created_at, started_at, finished_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            plan_json = excluded.plan_json,
            status = excluded.status,
            artifact = excluded.artifact,
            failure_kind = excluded.failure_kind,
            failure_stage = excluded.failure_stage,
            failure_diagnostic = excluded.failure_diagnostic,
            started_at = excluded.started_at,
            finished_at = excluded.finished_at,
            updated_at = excluded.updated_at`,
		snap.ID,
		snap.Flags.Colorize,
		snap.Flags.PanelView,
		snap.Root,
		string(plan),
		string(snap.Status),
		nullableString(snap.Artifact),
		kind,
		failedStage,
		diagnostic,
		formatTime(snap.CreatedAt),
		formatTime(snap.StartedAt),
		formatTime(snap.FinishedAt),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// Latest returns the most recently updated job with its outcomes. ok is false
// when the journal is empty.
func (j *Journal) Latest(ctx context.Context) (pipeline.Snapshot, bool, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT id, colorize, panel_view, root, plan_json, status, artifact,
            failure_kind, failure_stage, failure_diagnostic,
            created_at, started_at, finished_at
        FROM jobs ORDER BY updated_at DESC LIMIT 1`)

	var (
		snap                       pipeline.Snapshot
		planJSON, status           string
		artifact                   sql.NullString
		kind, failedStage, diag    sql.NullString
		created, started, finished sql.NullString
	)
	err := row.Scan(&snap.ID, &snap.Flags.Colorize, &snap.Flags.PanelView, &snap.Root, &planJSON, &status, &artifact,
		&kind, &failedStage, &diag, &created, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Snapshot{}, false, nil
	}
	if err != nil {
		return pipeline.Snapshot{}, false, fmt.Errorf("query latest job: %w", err)
	}
	if err := json.Unmarshal([]byte(planJSON), &snap.Plan); err != nil {
		return pipeline.Snapshot{}, false, fmt.Errorf("decode plan: %w", err)
	}
	snap.Status = pipeline.Status(status)
	snap.Artifact = artifact.String
	if kind.Valid {
		snap.Failure = &pipeline.Failure{Kind: kind.String, Stage: failedStage.String, Diagnostic: diag.String}
	}
	snap.CreatedAt = parseTime(created)
	snap.StartedAt = parseTime(started)
	snap.FinishedAt = parseTime(finished)

	snap.Outcomes, err = j.outcomes(ctx, snap.ID)
	if err != nil {
		return pipeline.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (j *Journal) outcomes(ctx context.Context, jobID string) ([]stage.Outcome, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT stage, status, diagnostic, output_path, exit_code, started_at, finished_at
        FROM stage_outcomes WHERE job_id = ? ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []stage.Outcome
	for rows.Next() {
		var (
			o                 stage.Outcome
			status            string
			diag, output      sql.NullString
			started, finished sql.NullString
		)
		if err := rows.Scan(&o.Stage, &status, &diag, &output, &o.ExitCode, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = stage.Status(status)
		o.Diagnostic = diag.String
		o.OutputPath = output.String
		o.StartedAt = parseTime(started)
		o.FinishedAt = parseTime(finished)
		out = append(out, o)
	}
	return out, rows.Err()
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(value sql.NullString) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
