package api

import (
	"time"

	"panelcast/internal/deps"
	"panelcast/internal/pipeline"
	"panelcast/internal/stage"
)

// FromSnapshot converts a job snapshot to its API representation.
func FromSnapshot(snap pipeline.Snapshot) JobView {
	progress := snap.Progress()
	view := JobView{
		ID:         snap.ID,
		Status:     string(snap.Status),
		Colorize:   snap.Flags.Colorize,
		PanelView:  snap.Flags.PanelView,
		Artifact:   snap.Artifact,
		Done:       progress.Done,
		Total:      progress.Total,
		Current:    progress.Current,
		CreatedAt:  formatTime(snap.CreatedAt),
		StartedAt:  formatTime(snap.StartedAt),
		FinishedAt: formatTime(snap.FinishedAt),
		Stages:     make([]StageView, 0, len(progress.Stages)),
	}
	if snap.Failure != nil {
		view.Failure = &JobFailure{
			Kind:       snap.Failure.Kind,
			Stage:      snap.Failure.Stage,
			Diagnostic: snap.Failure.Diagnostic,
		}
	}

	outcomes := make(map[string]stage.Outcome, len(snap.Outcomes))
	for _, o := range snap.Outcomes {
		outcomes[o.Stage] = o
	}
	for _, st := range progress.Stages {
		sv := StageView{Name: st.Name, State: st.State, Diagnostic: st.Diagnostic}
		if o, ok := outcomes[st.Name]; ok {
			sv.ExitCode = o.ExitCode
			sv.DurationMS = o.Duration().Milliseconds()
		}
		view.Stages = append(view.Stages, sv)
	}
	return view
}

// GenerateFromSnapshot builds the generate endpoint response. A timed out
// wait reports the job as still in progress without an error.
func GenerateFromSnapshot(snap pipeline.Snapshot, timedOut bool) GenerateResponse {
	resp := GenerateResponse{JobID: snap.ID, Status: string(snap.Status)}
	switch {
	case snap.Status == pipeline.StatusSucceeded:
		resp.IsSuccess = true
		resp.ArtifactPath = snap.Artifact
	case snap.Status == pipeline.StatusFailed:
		resp.Error = "pipeline failed"
		if snap.Failure != nil {
			resp.Error = snap.Failure.Diagnostic
			if snap.Failure.Stage != "" {
				resp.Error = snap.Failure.Stage + ": " + snap.Failure.Diagnostic
			}
		}
	case timedOut:
		resp.Error = "job still running; poll /api/jobs/" + snap.ID
	}
	return resp
}

// Terminal reports whether the job has finished.
func (v JobView) Terminal() bool {
	return v.Status == string(pipeline.StatusSucceeded) || v.Status == string(pipeline.StatusFailed)
}

// Succeeded reports whether the job finished with an artifact.
func (v JobView) Succeeded() bool {
	return v.Status == string(pipeline.StatusSucceeded)
}

// Flags returns the stage flags requested by g.
func (g GenerateRequest) Flags() stage.Flags {
	return stage.Flags{Colorize: g.IsColorization, PanelView: g.IsPanelView}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// StageHealthViews converts stage readiness checks.
func StageHealthViews(health []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// DependencyViews converts dependency checks.
func DependencyViews(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}
