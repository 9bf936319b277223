package poller

import (
	"fmt"

	"panelcast/internal/services"
)

// Reason classifies a Failure.
type Reason string

const (
	// ReasonTimeout: the deadline elapsed before the job finished. The job may
	// still complete on the service.
	ReasonTimeout Reason = "timeout"
	// ReasonPipelineError: the job ran and failed.
	ReasonPipelineError Reason = "pipeline_error"
	// ReasonRejected: the service refused the request.
	ReasonRejected Reason = "rejected"
	// ReasonCancelled: the caller cancelled the task.
	ReasonCancelled Reason = "cancelled"
)

// Failure is the only error type RequestAndWait and Task.Result return.
type Failure struct {
	Reason     Reason
	JobID      string
	Kind       string
	Stage      string
	Diagnostic string
}

func (f *Failure) Error() string {
	msg := string(f.Reason)
	if f.Stage != "" {
		msg += ": " + f.Stage
	}
	if f.Diagnostic != "" {
		msg += ": " + f.Diagnostic
	}
	if f.JobID != "" {
		msg += fmt.Sprintf(" (job %s)", f.JobID)
	}
	return msg
}

// Unwrap maps reasons onto the shared error sentinels.
func (f *Failure) Unwrap() error {
	switch f.Reason {
	case ReasonTimeout:
		return services.ErrTimeout
	case ReasonPipelineError:
		if f.Kind == "workspace" {
			return services.ErrWorkspace
		}
		if f.Stage == "" {
			return services.ErrPostCondition
		}
		return services.ErrStageFailure
	case ReasonRejected:
		return services.ErrValidation
	default:
		return nil
	}
}
