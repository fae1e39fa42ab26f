package uploader

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/oshokin/customization-deployer/internal/domain/deployment"
	"github.com/oshokin/customization-deployer/internal/erp"
	"github.com/oshokin/customization-deployer/internal/logger"
)

// errPackageTooLarge is returned for files above the configured size limit.
var errPackageTooLarge = errors.New("package exceeds the maximum size")

// API is the part of the customization API used for uploads.
type API interface {
	Import(ctx context.Context, session *deployment.Session, request *erp.ImportRequest) error
}

// Uploader reads package files from the backup filesystem and imports them.
type Uploader struct {
	api API
	fs  billy.Filesystem
	// maxSize is the largest accepted file in bytes, zero means unlimited.
	maxSize int64
	now     func() time.Time
}

// New creates an uploader reading package files from fs.
func New(api API, fs billy.Filesystem, maxSize int64) *Uploader {
	return &Uploader{
		api:     api,
		fs:      fs,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Upload sends one project to the instance.
func (u *Uploader) Upload(
	ctx context.Context,
	session *deployment.Session,
	project deployment.ProjectConfig,
) (deployment.UploadRecord, error) {
	logger.InfoKV(ctx, "Uploading package",
		"project", project.Name, "level", project.Level, "file", project.FilePath)

	request, err := u.buildRequest(session, project)
	if err == nil {
		err = u.api.Import(ctx, session, request)
	}

	if err != nil {
		logger.ErrorKV(ctx, "Upload failed", "project", project.Name, "error", err)

		return deployment.UploadRecord{}, &deployment.UploadError{Project: project, Err: err}
	}

	logger.InfoKV(ctx, "Upload successful", "project", project.Name)

	return deployment.UploadRecord{
		Project:         project,
		UploadedAt:      u.now(),
		ServerReference: request.ProjectName,
	}, nil
}

// buildRequest loads and encodes the package file.
func (u *Uploader) buildRequest(session *deployment.Session, project deployment.ProjectConfig) (*erp.ImportRequest, error) {
	if !session.Valid() {
		return nil, deployment.ErrNoSession
	}

	info, err := u.fs.Stat(project.FilePath)
	if err != nil {
		return nil, fmt.Errorf("stat package: %w", err)
	}

	if u.maxSize > 0 && info.Size() > u.maxSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", errPackageTooLarge, info.Size(), u.maxSize)
	}

	contents, err := util.ReadFile(u.fs, project.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read package: %w", err)
	}

	return &erp.ImportRequest{
		ProjectLevel:         project.Level,
		IsReplaceIfExists:    project.ReplaceIfExists,
		ProjectName:          project.Name,
		ProjectDescription:   project.Description,
		ProjectContentBase64: base64.StdEncoding.EncodeToString(contents),
	}, nil
}
