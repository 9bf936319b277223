// Package main hosts the panelcast CLI.
//
// The Cobra command tree runs the daemon in the foreground, runs single jobs
// in-process, drives the job poller against a running daemon, and renders
// status, stage readiness, and workspace contents. Configuration resolution
// and logger setup live in commandContext so subcommands stay small.
package main
