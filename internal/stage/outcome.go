package stage

import "time"

// Status is the terminal state of a single stage attempt.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome records one stage attempt. Outcomes are appended to a job once and
// never modified.
type Outcome struct {
	Stage      string    `json:"stage"`
	Status     Status    `json:"status"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	ExitCode   int       `json:"exit_code"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns the wall time of the attempt.
func (o Outcome) Duration() time.Duration {
	if o.StartedAt.IsZero() || o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// Failed reports whether the attempt failed.
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}
