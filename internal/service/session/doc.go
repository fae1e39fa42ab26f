// Package session owns the authenticated session of a deployment run.
package session
