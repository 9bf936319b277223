// Package services defines shared utilities consumed by the pipeline, the job
// service, and the client poller.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified with errors.Is at any boundary.
//
// Stage failures are data (stage outcomes) inside the pipeline; these markers
// only travel on the aggregate result that leaves the runner or the service.
package services
