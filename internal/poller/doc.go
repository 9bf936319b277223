// Package poller is the client side of the job API.
//
// Client wraps the HTTP endpoints. Poller submits a job and long-polls it to
// completion under an overall deadline, retrying busy and unreachable
// services at a fixed interval and resubmitting when the service forgets the
// job after a restart. Every outcome other than an artifact path is reported
// as a *Failure; transport errors are never returned as-is.
package poller
