package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/customization-deployer/internal/config"
	"github.com/oshokin/customization-deployer/internal/domain/deployment"
	"github.com/oshokin/customization-deployer/internal/erp"
	"github.com/oshokin/customization-deployer/internal/logger"
)

// errNothingToPublish is returned when no upload record is given.
var errNothingToPublish = errors.New("no uploaded projects to publish")

// API is the part of the customization API used to start publication.
type API interface {
	PublishBegin(ctx context.Context, session *deployment.Session, request *erp.PublishRequest) error
}

// Publisher issues the publish request for a set of uploaded projects.
type Publisher struct {
	api     API
	options config.Publish
	now     func() time.Time
}

// New creates a publisher sending options with every request.
func New(api API, options config.Publish) *Publisher {
	if options.TenantMode == "" {
		options.TenantMode = config.DefaultTenantMode
	}

	return &Publisher{
		api:     api,
		options: options,
		now:     time.Now,
	}
}

// Publish asks the instance to publish every uploaded project in one request.
// Acceptance only means publication started; completion is reported by the poller.
func (p *Publisher) Publish(
	ctx context.Context,
	session *deployment.Session,
	records []deployment.UploadRecord,
) (deployment.PublishHandle, error) {
	names := make([]string, 0, len(records))
	for _, record := range records {
		names = append(names, record.ServerReference)
	}

	if len(names) == 0 {
		return deployment.PublishHandle{}, &deployment.PublishError{Err: errNothingToPublish}
	}

	if !session.Valid() {
		return deployment.PublishHandle{}, &deployment.PublishError{ProjectNames: names, Err: deployment.ErrNoSession}
	}

	logger.InfoKV(ctx, "Requesting publication", "projects", names, "tenant_mode", p.options.TenantMode)

	request := &erp.PublishRequest{
		IsMergeWithExistingPackages:       p.options.MergeWithExistingPackages,
		IsOnlyValidation:                  p.options.OnlyValidation,
		IsOnlyDBUpdates:                   p.options.OnlyDBUpdates,
		IsReplayPreviouslyExecutedScripts: p.options.ReplayPreviouslyExecutedScripts,
		ProjectNames:                      names,
		TenantMode:                        p.options.TenantMode,
	}

	if err := p.api.PublishBegin(ctx, session, request); err != nil {
		logger.ErrorKV(ctx, "Publish request rejected", "error", err)

		return deployment.PublishHandle{}, &deployment.PublishError{ProjectNames: names, Err: err}
	}

	logger.Info(ctx, "Publication started")

	return deployment.PublishHandle{
		ProjectNames: names,
		AcceptedAt:   p.now(),
	}, nil
}
