package drapto

import (
	draptolib "github.com/five82/drapto"
)

// progressReporter forwards the drapto events panelcast cares about and
// ignores the rest.
type progressReporter struct {
	callback func(Progress)
}

func newProgressReporter(callback func(Progress)) *progressReporter {
	return &progressReporter{callback: callback}
}

func (r *progressReporter) Hardware(draptolib.HardwareSummary) {}

func (r *progressReporter) Initialization(s draptolib.InitializationSummary) {
	r.callback(Progress{Stage: "initialization", Message: s.InputFile})
}

func (r *progressReporter) StageProgress(s draptolib.StageProgress) {
	r.callback(Progress{Stage: s.Stage, Percent: float64(s.Percent), Message: s.Message})
}

func (r *progressReporter) CropResult(draptolib.CropSummary) {}

func (r *progressReporter) EncodingConfig(draptolib.EncodingConfigSummary) {}

func (r *progressReporter) EncodingStarted(uint64) {
	r.callback(Progress{Stage: "encoding"})
}

func (r *progressReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.callback(Progress{Stage: "encoding", Percent: float64(s.Percent)})
}

func (r *progressReporter) ValidationComplete(s draptolib.ValidationSummary) {
	msg := "validation passed"
	if !s.Passed {
		msg = "validation failed"
	}
	r.callback(Progress{Stage: "validation", Percent: 100, Message: msg})
}

func (r *progressReporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.callback(Progress{Stage: "complete", Percent: 100, Message: s.OutputPath})
}

func (r *progressReporter) Warning(message string) {
	r.callback(Progress{Stage: "warning", Message: message})
}

func (r *progressReporter) Error(e draptolib.ReporterError) {
	r.callback(Progress{Stage: "error", Message: e.Title + ": " + e.Message})
}

func (r *progressReporter) OperationComplete(message string) {
	r.callback(Progress{Stage: "complete", Percent: 100, Message: message})
}

func (r *progressReporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *progressReporter) FileProgress(draptolib.FileProgressContext) {}

func (r *progressReporter) BatchComplete(draptolib.BatchSummary) {}

var _ draptolib.Reporter = (*progressReporter)(nil)
