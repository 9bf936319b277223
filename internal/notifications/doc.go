// Package notifications pushes job lifecycle events to an ntfy topic.
//
// NewService returns a no-op publisher when no topic is configured, so
// callers never need to check. Individual events can be switched off in the
// [notifications] config section.
package notifications
