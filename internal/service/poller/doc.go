// Package poller monitors a running publication.
//
// Poll returns a lazy sequence of publication statuses. Every step waits for
// the configured interval and issues one status query; the sequence ends after
// the first terminal status, a timeout, or too many consecutive failed
// queries. Publication log lines reported by the instance are printed once.
package poller
