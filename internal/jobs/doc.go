// Package jobs owns the single in-flight pipeline job of a panelcast process.
//
// A Service accepts submissions, rejects them while another job runs, prepares
// the workspace, and drives the pipeline runner on a goroutine bound to the
// service lifetime rather than to the submitting request. Callers that stop
// waiting leave the job running; Await with a deadline reports TimedOut and
// the job completes detached. Shutdown is the only path that cancels a job.
package jobs
