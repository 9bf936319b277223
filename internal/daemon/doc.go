// Package daemon coordinates the long-running panelcast process.
//
// It holds a flock on the lock file so only one daemon runs per log
// directory, owns the job service, and serves the HTTP API with a chi router.
// Stop cancels any running job, which terminates the active stage's process
// group, before releasing the lock.
package daemon
