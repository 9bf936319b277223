package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"panelcast/internal/services"
	"panelcast/internal/stage"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Failure explains why a job failed.
type Failure struct {
	Kind       string `json:"kind"`
	Stage      string `json:"stage,omitempty"`
	Diagnostic string `json:"diagnostic"`
}

// Job is one pipeline run. Only the runner mutates it; everyone else reads
// snapshots.
type Job struct {
	mu         sync.RWMutex
	id         string
	flags      stage.Flags
	root       string
	plan       []string
	status     Status
	outcomes   []stage.Outcome
	artifact   string
	failure    *Failure
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	done       chan struct{}
}

// NewJob creates a pending job with a fresh identifier.
func NewJob(flags stage.Flags, root string) *Job {
	return &Job{
		id:        uuid.NewString(),
		flags:     flags,
		root:      root,
		status:    StatusPending,
		createdAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Flags returns the flags the job was submitted with.
func (j *Job) Flags() stage.Flags { return j.flags }

// Done is closed once the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} { return j.done }

// Abort fails a job that never started running, for example when the
// workspace could not be prepared.
func (j *Job) Abort(err error) {
	j.finish(StatusFailed, "", &Failure{Kind: services.Kind(err), Diagnostic: err.Error()})
}

func (j *Job) begin(plan []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.plan = append([]string(nil), plan...)
	j.status = StatusRunning
	j.startedAt = time.Now().UTC()
}

func (j *Job) record(outcome stage.Outcome) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcomes = append(j.outcomes, outcome)
	return len(j.outcomes)
}

func (j *Job) finish(status Status, artifact string, failure *Failure) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = status
	j.artifact = artifact
	j.failure = failure
	j.finishedAt = time.Now().UTC()
	close(j.done)
}

// Snapshot is an immutable copy of a job's state.
type Snapshot struct {
	ID         string          `json:"id"`
	Flags      stage.Flags     `json:"flags"`
	Root       string          `json:"root"`
	Plan       []string        `json:"plan,omitempty"`
	Status     Status          `json:"status"`
	Outcomes   []stage.Outcome `json:"outcomes"`
	Artifact   string          `json:"artifact,omitempty"`
	Failure    *Failure        `json:"failure,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  time.Time       `json:"started_at,omitempty"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
}

// Snapshot copies the current state.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	snap := Snapshot{
		ID:         j.id,
		Flags:      j.flags,
		Root:       j.root,
		Plan:       append([]string(nil), j.plan...),
		Status:     j.status,
		Outcomes:   append([]stage.Outcome(nil), j.outcomes...),
		Artifact:   j.artifact,
		CreatedAt:  j.createdAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
	if j.failure != nil {
		failure := *j.failure
		snap.Failure = &failure
	}
	return snap
}

// StageState is one row of a progress view.
type StageState struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Progress is derived from a snapshot's outcomes; it is never stored.
type Progress struct {
	Status  Status       `json:"status"`
	Stages  []StageState `json:"stages"`
	Done    int          `json:"done"`
	Total   int          `json:"total"`
	Current string       `json:"current,omitempty"`
}

// Progress projects the outcome list onto the planned stages. Stages without
// an outcome are "running" (the first one, while the job runs) or "pending".
func (s Snapshot) Progress() Progress {
	p := Progress{Status: s.Status, Total: len(s.Plan), Done: len(s.Outcomes)}
	recorded := make(map[string]stage.Outcome, len(s.Outcomes))
	for _, outcome := range s.Outcomes {
		recorded[outcome.Stage] = outcome
	}
	for _, name := range s.Plan {
		if outcome, ok := recorded[name]; ok {
			p.Stages = append(p.Stages, StageState{Name: name, State: string(outcome.Status), Diagnostic: outcome.Diagnostic})
			continue
		}
		state := "pending"
		if s.Status == StatusRunning && p.Current == "" {
			state = "running"
			p.Current = name
		}
		p.Stages = append(p.Stages, StageState{Name: name, State: state})
	}
	return p
}

// FirstFailure returns the first failed outcome of a required stage, if any.
func (s Snapshot) FirstFailure() (stage.Outcome, bool) {
	if s.Failure != nil && s.Failure.Stage != "" {
		for _, outcome := range s.Outcomes {
			if outcome.Stage == s.Failure.Stage && outcome.Failed() {
				return outcome, true
			}
		}
	}
	return stage.Outcome{}, false
}
