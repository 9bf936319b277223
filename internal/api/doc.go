// Package api defines the wire-format types shared by the HTTP server and the
// poller client.
//
// GenerateRequest and GenerateResponse are the fixed contract of the
// synchronous generate endpoint. JobView is the transport form of a pipeline
// snapshot with progress derived from its stage outcomes. All JSON keys are
// snake_case to match the generate contract; timestamps are RFC3339 with
// milliseconds.
package api
