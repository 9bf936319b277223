// Package preflight provides readiness checks for the filesystem paths and
// external tools panelcast depends on.
//
// The daemon logs CheckSystemDeps at startup and serves it from the status
// endpoint; the CLI status and stages commands render the same list.
// RunAll covers the directories the job service writes to.
package preflight
