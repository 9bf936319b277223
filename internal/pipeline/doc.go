// Package pipeline sequences stages for a single job.
//
// Runner.Run walks the definitions in order: a failed required stage ends the
// job immediately, a failed optional stage is logged and bypassed. After the
// last stage the assembled artifact must exist; then the re-encode step runs
// and its output is verified. Job holds the append-only outcome list and
// hands out immutable Snapshots; Progress is computed from a snapshot on
// demand.
package pipeline
