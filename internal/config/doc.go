// Package config loads, normalizes, and validates panelcast configuration.
//
// Configuration is read from TOML (an explicit --config path, then
// ~/.config/panelcast/config.toml, then ./panelcast.toml), layered over
// Default(), and then normalized: home-relative paths are expanded, blank
// workspace directory names fall back to their defaults, and a small set of
// environment overrides (PANELCAST_WORKSPACE, PANELCAST_SERVICE_URL) apply.
//
// Workspace directory names stay relative here; the workspace package joins
// them onto Paths.WorkspaceRoot.
package config
