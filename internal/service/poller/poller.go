package poller

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/oshokin/customization-deployer/internal/config"
	"github.com/oshokin/customization-deployer/internal/domain/deployment"
	"github.com/oshokin/customization-deployer/internal/erp"
	"github.com/oshokin/customization-deployer/internal/logger"
)

// API is the part of the customization API used to read publication status.
type API interface {
	PublishEnd(ctx context.Context, session *deployment.Session) (*erp.PublishStatus, error)
}

// Poller reads the status of a publication until it settles.
type Poller struct {
	api        API
	interval   time.Duration
	timeout    time.Duration
	maxRetries int
	now        func() time.Time
}

// New creates a poller with the interval, timeout and retry budget of settings.
func New(api API, settings config.Poll) *Poller {
	if settings.Interval <= 0 {
		settings.Interval = config.DefaultPollInterval
	}

	if settings.Timeout <= 0 {
		settings.Timeout = config.DefaultPollTimeout
	}

	if settings.MaxRetries <= 0 {
		settings.MaxRetries = config.DefaultPollRetries
	}

	return &Poller{
		api:        api,
		interval:   settings.Interval,
		timeout:    settings.Timeout,
		maxRetries: settings.MaxRetries,
		now:        time.Now,
	}
}

// Poll returns the statuses of the publication identified by handle.
// Nothing happens until the sequence is ranged over; each range starts a new
// polling budget. The sequence yields every observed status and stops after the
// first terminal one. It ends with a non-nil error on timeout (PollTimeoutError),
// on too many consecutive failed queries (PollError) or when ctx is done.
func (p *Poller) Poll(
	ctx context.Context,
	session *deployment.Session,
	handle deployment.PublishHandle,
) iter.Seq2[deployment.PublicationStatus, error] {
	return func(yield func(deployment.PublicationStatus, error) bool) {
		var (
			deadline = p.now().Add(p.timeout)
			tracker  = newLogTracker()
			last     *deployment.PublicationStatus
			failures int
		)

		logger.InfoKV(ctx, "Monitoring publication",
			"projects", handle.ProjectNames, "interval", p.interval.String(), "timeout", p.timeout.String())

		timer := time.NewTimer(p.interval)
		defer timer.Stop()

		for {
			remaining := deadline.Sub(p.now())
			if remaining <= 0 {
				yield(deployment.PublicationStatus{}, &deployment.PollTimeoutError{Timeout: p.timeout, Last: last})
				return
			}

			timer.Reset(min(p.interval, remaining))

			select {
			case <-ctx.Done():
				yield(deployment.PublicationStatus{}, ctx.Err())
				return
			case <-timer.C:
			}

			// The budget ran out before the next query was due.
			if p.interval > remaining {
				continue
			}

			response, expired, err := p.query(ctx, session, deadline)
			if err != nil {
				if ctx.Err() != nil {
					yield(deployment.PublicationStatus{}, ctx.Err())
					return
				}

				if expired {
					yield(deployment.PublicationStatus{}, &deployment.PollTimeoutError{Timeout: p.timeout, Last: last})
					return
				}

				failures++

				if failures > p.maxRetries {
					yield(deployment.PublicationStatus{}, &deployment.PollError{Attempts: failures, Err: err})
					return
				}

				logger.WarnKV(ctx, "Publication status query failed, retrying",
					"attempt", failures, "max_retries", p.maxRetries, "error", err)

				continue
			}

			failures = 0
			tracker.print(ctx, response.Log)

			status := toStatus(response)
			if last == nil || last.Kind != status.Kind {
				logger.InfoKV(ctx, "Publication status changed", "status", status.Kind.String())
			}

			last = &status

			if !yield(status, nil) || status.IsTerminal() {
				return
			}
		}
	}
}

// query reads the publication status within the polling deadline.
// expired reports that the deadline cut the query short.
func (p *Poller) query(
	ctx context.Context,
	session *deployment.Session,
	deadline time.Time,
) (response *erp.PublishStatus, expired bool, err error) {
	queryCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	response, err = p.api.PublishEnd(queryCtx, session)
	if err != nil {
		return nil, errors.Is(queryCtx.Err(), context.DeadlineExceeded), err
	}

	return response, false, nil
}

// toStatus maps a publishEnd answer onto the publication status enum.
func toStatus(response *erp.PublishStatus) deployment.PublicationStatus {
	var warnings, errs []string

	for _, entry := range response.Log {
		switch entry.Type() {
		case erp.LogTypeWarning:
			warnings = append(warnings, entry.Message)
		case erp.LogTypeError:
			errs = append(errs, entry.Message)
		}
	}

	switch {
	case !response.IsCompleted && len(response.Log) == 0:
		return deployment.PublicationStatus{Kind: deployment.StatusPending}
	case !response.IsCompleted:
		return deployment.PublicationStatus{
			Kind:   deployment.StatusInProgress,
			Detail: response.Log[len(response.Log)-1].Message,
		}
	case response.IsFailed:
		return deployment.PublicationStatus{Kind: deployment.StatusFailed, Detail: strings.Join(errs, "; ")}
	case len(warnings) > 0:
		return deployment.PublicationStatus{Kind: deployment.StatusWarning, Detail: strings.Join(warnings, "; ")}
	default:
		return deployment.PublicationStatus{Kind: deployment.StatusSucceeded}
	}
}

// logTracker prints each publication log entry once.
type logTracker struct {
	seen map[string]struct{}
}

func newLogTracker() *logTracker {
	return &logTracker{seen: make(map[string]struct{})}
}

func (t *logTracker) print(ctx context.Context, entries []erp.LogEntry) {
	for _, entry := range entries {
		key := entry.Type() + ":" + entry.Message
		if _, ok := t.seen[key]; ok {
			continue
		}

		t.seen[key] = struct{}{}

		switch entry.Type() {
		case erp.LogTypeError:
			logger.ErrorKV(ctx, "Publication log", "type", entry.Type(), "message", entry.Message)
		case erp.LogTypeWarning:
			logger.WarnKV(ctx, "Publication log", "type", entry.Type(), "message", entry.Message)
		default:
			logger.InfoKV(ctx, "Publication log", "type", entry.Type(), "message", entry.Message)
		}
	}
}
