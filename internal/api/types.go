package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// GenerateRequest is the body of POST /generate-manga and POST /api/jobs.
type GenerateRequest struct {
	IsColorization bool `json:"is_colorization"`
	IsPanelView    bool `json:"is_panel_view"`
}

// GenerateResponse is returned by POST /generate-manga.
type GenerateResponse struct {
	IsSuccess    bool   `json:"is_success"`
	JobID        string `json:"job_id,omitempty"`
	Status       string `json:"status,omitempty"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	Error        string `json:"error,omitempty"`
}

// JobView describes a job in a transport-friendly format.
type JobView struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"`
	Colorize   bool        `json:"colorize"`
	PanelView  bool        `json:"panel_view"`
	Artifact   string      `json:"artifact,omitempty"`
	Failure    *JobFailure `json:"failure,omitempty"`
	Stages     []StageView `json:"stages"`
	Done       int         `json:"done"`
	Total      int         `json:"total"`
	Current    string      `json:"current,omitempty"`
	CreatedAt  string      `json:"created_at,omitempty"`
	StartedAt  string      `json:"started_at,omitempty"`
	FinishedAt string      `json:"finished_at,omitempty"`
}

// JobFailure explains a failed job.
type JobFailure struct {
	Kind       string `json:"kind"`
	Stage      string `json:"stage,omitempty"`
	Diagnostic string `json:"diagnostic"`
}

// StageView is one planned stage and its state.
type StageView struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	ExitCode   int    `json:"exit_code,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// WaitResponse is returned by GET /api/jobs/{id}/wait.
type WaitResponse struct {
	Job      JobView `json:"job"`
	TimedOut bool    `json:"timed_out"`
}

// ErrorResponse is the body of every non-2xx response except generate.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	JobID string `json:"job_id,omitempty"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	LockFilePath  string             `json:"lock_file_path"`
	JournalPath   string             `json:"journal_path"`
	WorkspaceRoot string             `json:"workspace_root"`
	Job           *JobView           `json:"job,omitempty"`
	Stages        []StageHealth      `json:"stages"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}
