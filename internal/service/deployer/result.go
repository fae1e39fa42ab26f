package deployer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/customization-deployer/internal/domain/deployment"
	"github.com/oshokin/customization-deployer/internal/logger"
)

// Exit codes of the CLI.
const (
	ExitCompleted = 0
	ExitFailed    = 1
)

// Result describes the outcome of one run.
type Result struct {
	// RunID correlates the log lines and the report of a run.
	RunID string
	// Instance is the base URL deployed to.
	Instance string
	// PackageDate identifies the package directory.
	PackageDate string
	// Outcome is StateCompleted or StateFailed.
	Outcome deployment.State
	// Trace lists every state the run went through, ending with StateLoggedOut.
	Trace []deployment.State
	// Uploaded are the projects accepted by the instance, in upload order.
	Uploaded []string
	// PublishRequested is set once the publish request was sent.
	PublishRequested bool
	// FinalStatus is the terminal publication status, if one was observed.
	FinalStatus *deployment.PublicationStatus
	// LogoutAttempted is set once a logout was requested for the run session.
	LogoutAttempted bool
	// LoggedOut reports whether the instance confirmed the logout.
	LoggedOut bool
	// Err is the failure cause of a failed run.
	Err error
	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time

	warningExitCode int
}

// Succeeded reports whether the run completed, with or without warnings.
func (r *Result) Succeeded() bool {
	return r.Outcome == deployment.StateCompleted
}

// ExitCode maps the outcome onto the process exit status.
func (r *Result) ExitCode() int {
	switch {
	case !r.Succeeded():
		return ExitFailed
	case r.FinalStatus != nil && r.FinalStatus.Kind == deployment.StatusWarning:
		return r.warningExitCode
	default:
		return ExitCompleted
	}
}

// Summary is the final human readable line of a run.
func (r *Result) Summary() string {
	if r.Succeeded() {
		if r.FinalStatus != nil && r.FinalStatus.Kind == deployment.StatusWarning {
			return fmt.Sprintf("Deployment completed with warnings (%d package(s) published): %s",
				len(r.Uploaded), r.FinalStatus.Detail)
		}

		return fmt.Sprintf("Deployment completed successfully (%d package(s) published)", len(r.Uploaded))
	}

	if r.PublishRequested || deployment.PublishRequested(r.Err) {
		return fmt.Sprintf("Deployment failed during or after the publish request (%s); "+
			"verify the customization state on the instance before re-running: %v", r.failureKind(), r.Err)
	}

	return fmt.Sprintf("Deployment failed before publication (%s); it is safe to re-run: %v", r.failureKind(), r.Err)
}

// failureKind names the failure category for the summary.
func (r *Result) failureKind() string {
	var (
		resolutionErr *deployment.ConfigResolutionError
		authErr       *deployment.AuthenticationError
		uploadErr     *deployment.UploadError
		publishErr    *deployment.PublishError
		pollErr       *deployment.PollError
		timeoutErr    *deployment.PollTimeoutError
		failedErr     *deployment.PublicationFailedError
	)

	// A signal during any step surfaces wrapped in that step's error.
	switch {
	case errors.Is(r.Err, context.Canceled):
		return "cancelled"
	case errors.As(r.Err, &resolutionErr):
		return "package resolution"
	case errors.As(r.Err, &authErr):
		return "authentication"
	case errors.As(r.Err, &uploadErr):
		return "upload of " + uploadErr.Project.Name
	case errors.As(r.Err, &publishErr):
		return "publish request"
	case errors.As(r.Err, &timeoutErr):
		return "publication timeout"
	case errors.As(r.Err, &pollErr):
		return "status polling"
	case errors.As(r.Err, &failedErr):
		return "publication failed"
	case errors.Is(r.Err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unexpected error"
	}
}

// current returns the latest state of the trace.
func (r *Result) current() deployment.State {
	if len(r.Trace) == 0 {
		return deployment.StateInit
	}

	return r.Trace[len(r.Trace)-1]
}

// logSummary writes the final summary line.
func (r *Result) logSummary(ctx context.Context) {
	kvs := []any{
		"outcome", r.Outcome.String(),
		"uploaded", len(r.Uploaded),
		"duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	}

	if r.FinalStatus != nil {
		kvs = append(kvs, "final_status", r.FinalStatus.Kind.String())
	}

	switch {
	case !r.Succeeded():
		logger.ErrorKV(ctx, r.Summary(), kvs...)
	case r.FinalStatus != nil && r.FinalStatus.Kind == deployment.StatusWarning:
		logger.WarnKV(ctx, r.Summary(), kvs...)
	default:
		logger.InfoKV(ctx, r.Summary(), kvs...)
	}
}
