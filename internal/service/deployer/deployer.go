package deployer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/oshokin/customization-deployer/internal/domain/deployment"
	"github.com/oshokin/customization-deployer/internal/logger"
)

// errNoTerminalStatus is returned when the status sequence ends without a verdict.
var errNoTerminalStatus = errors.New("publication status sequence ended without a terminal status")

// Resolver lists the projects of a package directory in publish order.
type Resolver interface {
	Resolve(ctx context.Context, packageDate string) ([]deployment.ProjectConfig, error)
}

// SessionManager opens and releases the run session.
type SessionManager interface {
	Login(ctx context.Context, baseURL, username, password string) (*deployment.Session, error)
	Logout(ctx context.Context, session *deployment.Session) bool
}

// Uploader sends one package to the instance.
type Uploader interface {
	Upload(ctx context.Context, session *deployment.Session, project deployment.ProjectConfig) (deployment.UploadRecord, error)
}

// Publisher requests publication of uploaded packages.
type Publisher interface {
	Publish(ctx context.Context, session *deployment.Session, records []deployment.UploadRecord) (deployment.PublishHandle, error)
}

// StatusPoller follows a publication until it settles.
type StatusPoller interface {
	Poll(
		ctx context.Context,
		session *deployment.Session,
		handle deployment.PublishHandle,
	) iter.Seq2[deployment.PublicationStatus, error]
}

// Dependencies are the components a Deployer sequences.
type Dependencies struct {
	Resolver  Resolver
	Sessions  SessionManager
	Uploader  Uploader
	Publisher Publisher
	Poller    StatusPoller
}

// Settings tune a Deployer.
type Settings struct {
	// UploadDelay is the pause between login and the first upload.
	UploadDelay time.Duration
	// PublishDelay is the pause between the last upload and the publish request.
	PublishDelay time.Duration
	// WarningExitCode is the exit status of runs whose publication ended with warnings.
	WarningExitCode int
}

// Target is what a single run deploys and where.
type Target struct {
	BaseURL     string
	Username    string
	Password    string
	PackageDate string
}

// Deployer runs the deployment state machine.
type Deployer struct {
	deps     Dependencies
	settings Settings
	now      func() time.Time
}

// New creates a Deployer.
func New(deps Dependencies, settings Settings) *Deployer {
	return &Deployer{
		deps:     deps,
		settings: settings,
		now:      time.Now,
	}
}

// Deploy executes one run. It never returns nil; failures are reported in the
// result. When login succeeded, logout runs on every exit path, including panics
// raised by a component.
func (d *Deployer) Deploy(ctx context.Context, target Target) (result *Result) {
	result = &Result{
		Instance:        target.BaseURL,
		PackageDate:     target.PackageDate,
		StartedAt:       d.now(),
		Trace:           []deployment.State{deployment.StateInit},
		warningExitCode: d.settings.WarningExitCode,
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			d.fail(ctx, result, fmt.Errorf("unexpected failure: %v", recovered))
		}

		d.transition(ctx, result, deployment.StateLoggedOut)
		result.FinishedAt = d.now()
		result.logSummary(ctx)
	}()

	projects, err := d.deps.Resolver.Resolve(ctx, target.PackageDate)
	if err != nil {
		d.fail(ctx, result, err)
		return result
	}

	session, err := d.deps.Sessions.Login(ctx, target.BaseURL, target.Username, target.Password)
	if err != nil {
		d.fail(ctx, result, err)
		return result
	}

	defer func() {
		result.LogoutAttempted = true
		result.LoggedOut = d.deps.Sessions.Logout(ctx, session)
	}()

	d.transition(ctx, result, deployment.StateAuthenticated)

	records, err := d.upload(ctx, result, session, projects)
	if err != nil {
		d.fail(ctx, result, err)
		return result
	}

	handle, err := d.publish(ctx, result, session, records)
	if err != nil {
		d.fail(ctx, result, err)
		return result
	}

	final, err := d.poll(ctx, result, session, handle)
	if err != nil {
		d.fail(ctx, result, err)
		return result
	}

	result.FinalStatus = &final

	if final.Kind == deployment.StatusFailed {
		d.fail(ctx, result, &deployment.PublicationFailedError{Status: final})
		return result
	}

	if final.Kind == deployment.StatusWarning {
		logger.WarnKV(ctx, "Publication completed with warnings", "detail", final.Detail)
	}

	result.Outcome = deployment.StateCompleted
	d.transition(ctx, result, deployment.StateCompleted)

	return result
}

// upload sends every project in order and stops at the first failure.
func (d *Deployer) upload(
	ctx context.Context,
	result *Result,
	session *deployment.Session,
	projects []deployment.ProjectConfig,
) ([]deployment.UploadRecord, error) {
	if err := d.pause(ctx, "Waiting before starting upload", d.settings.UploadDelay); err != nil {
		return nil, err
	}

	d.transition(ctx, result, deployment.StateUploading)

	records := make([]deployment.UploadRecord, 0, len(projects))

	for i, project := range projects {
		logger.InfoKV(ctx, "Package upload", "index", i+1, "total", len(projects), "project", project.Name)

		record, err := d.deps.Uploader.Upload(ctx, session, project)
		if err != nil {
			if skipped := len(projects) - i - 1; skipped > 0 {
				logger.WarnKV(ctx, "Skipping remaining uploads", "skipped", skipped)
			}

			return nil, err
		}

		records = append(records, record)
		result.Uploaded = append(result.Uploaded, record.ServerReference)
	}

	return records, nil
}

// publish waits for the configured pause and requests publication.
func (d *Deployer) publish(
	ctx context.Context,
	result *Result,
	session *deployment.Session,
	records []deployment.UploadRecord,
) (deployment.PublishHandle, error) {
	if err := d.pause(ctx, "Waiting before publishing", d.settings.PublishDelay); err != nil {
		return deployment.PublishHandle{}, err
	}

	d.transition(ctx, result, deployment.StatePublishing)
	result.PublishRequested = true

	return d.deps.Publisher.Publish(ctx, session, records)
}

// poll consumes the status sequence until its terminal value.
func (d *Deployer) poll(
	ctx context.Context,
	result *Result,
	session *deployment.Session,
	handle deployment.PublishHandle,
) (deployment.PublicationStatus, error) {
	d.transition(ctx, result, deployment.StatePolling)

	for status, err := range d.deps.Poller.Poll(ctx, session, handle) {
		if err != nil {
			return deployment.PublicationStatus{}, err
		}

		if status.IsTerminal() {
			return status, nil
		}
	}

	return deployment.PublicationStatus{}, errNoTerminalStatus
}

// pause blocks for delay unless ctx ends first.
func (d *Deployer) pause(ctx context.Context, message string, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	logger.InfoKV(ctx, message, "delay", delay.String())

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fail records err as the run outcome.
func (d *Deployer) fail(ctx context.Context, result *Result, err error) {
	result.Err = err
	result.Outcome = deployment.StateFailed

	logger.ErrorKV(ctx, "Deployment step failed", "state", result.current().String(), "error", err)
	d.transition(ctx, result, deployment.StateFailed)
}

// transition moves the state machine and logs the step.
func (d *Deployer) transition(ctx context.Context, result *Result, next deployment.State) {
	logger.DebugKV(ctx, "State transition", "from", result.current().String(), "to", next.String())

	result.Trace = append(result.Trace, next)
}
