// Package logging assembles the slog loggers used by the daemon and CLI.
//
// New builds either a single-line console handler or a JSON handler over one
// or more outputs (stdout, stderr, or files). Context helpers tag records with
// job IDs, stage names, and request correlation IDs carried by the services
// package, and NewNop gives tests and optional wiring a logger that cannot fail.
package logging
