package deployment

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoSession is returned when an operation needs a live session and has none.
var ErrNoSession = errors.New("no valid session")

// ConfigResolutionError reports a package directory that cannot be turned into a package list.
type ConfigResolutionError struct {
	// Path is the directory or file that could not be resolved.
	Path string
	// Err is the underlying cause.
	Err error
}

func (e *ConfigResolutionError) Error() string {
	return fmt.Sprintf("resolve packages in %s: %v", e.Path, e.Err)
}

func (e *ConfigResolutionError) Unwrap() error { return e.Err }

// AuthenticationError reports a failed login exchange.
type AuthenticationError struct {
	// BaseURL is the instance the login was sent to.
	BaseURL string
	// Err is the underlying cause.
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication against %s failed: %v", e.BaseURL, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// UploadError reports a package that could not be uploaded.
type UploadError struct {
	// Project is the package that failed.
	Project ProjectConfig
	// Err is the underlying cause.
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s failed: %v", e.Project.Name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PublishError reports a publish request rejected by the instance.
type PublishError struct {
	// ProjectNames are the projects the request referenced.
	ProjectNames []string
	// Err is the underlying cause.
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish request for %d project(s) failed: %v", len(e.ProjectNames), e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// PollError reports a publication whose status could not be read.
type PollError struct {
	// Attempts is the number of consecutive failed queries.
	Attempts int
	// Err is the last query failure.
	Err error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("publication status unavailable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// PollTimeoutError reports a publication that did not finish in time.
// The publication may still be running on the instance.
type PollTimeoutError struct {
	// Timeout is the polling budget that elapsed.
	Timeout time.Duration
	// Last is the last status observed, if any.
	Last *PublicationStatus
}

func (e *PollTimeoutError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("publication did not finish within %s, no status observed", e.Timeout)
	}

	return fmt.Sprintf("publication did not finish within %s, last status %s", e.Timeout, e.Last)
}

// PublicationFailedError reports a publication that ended with a Failed status.
type PublicationFailedError struct {
	// Status is the terminal status.
	Status PublicationStatus
}

func (e *PublicationFailedError) Error() string {
	if e.Status.Detail == "" {
		return "publication completed with errors"
	}

	return "publication completed with errors: " + e.Status.Detail
}

// PublishRequested reports whether err happened once the publish request was on its way,
// in which case the instance may already hold a partially applied publication.
func PublishRequested(err error) bool {
	var (
		publishErr *PublishError
		pollErr    *PollError
		timeoutErr *PollTimeoutError
		failedErr  *PublicationFailedError
	)

	return errors.As(err, &publishErr) ||
		errors.As(err, &pollErr) ||
		errors.As(err, &timeoutErr) ||
		errors.As(err, &failedErr)
}
