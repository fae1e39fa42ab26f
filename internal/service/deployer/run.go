package deployer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"

	"github.com/oshokin/customization-deployer/internal/config"
	"github.com/oshokin/customization-deployer/internal/domain/deployment"
	"github.com/oshokin/customization-deployer/internal/erp"
	"github.com/oshokin/customization-deployer/internal/logger"
	"github.com/oshokin/customization-deployer/internal/repository/report"
	"github.com/oshokin/customization-deployer/internal/service/poller"
	"github.com/oshokin/customization-deployer/internal/service/publisher"
	"github.com/oshokin/customization-deployer/internal/service/resolver"
	"github.com/oshokin/customization-deployer/internal/service/session"
	"github.com/oshokin/customization-deployer/internal/service/uploader"
)

var (
	errBackupRootRequired  = errors.New("backup root must be provided")
	errCredentialsRequired = errors.New("username and password must be provided")
	errPackageDateRequired = errors.New("package date must be provided")
)

// Options are inputs accepted by the deployer entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Instance is an alias from the instance table or a base URL.
	Instance string
	// Username and Password authenticate against the instance.
	Username string
	Password string
	// PackageDate names the package directory, e.g. 21-03-2025-1.
	PackageDate string
	// BackupRoot overrides the configured backup root when set.
	BackupRoot string
	// ReportPath is where the JSON run report is written, empty disables it.
	ReportPath string
}

// Run loads settings, wires the components and executes one deployment.
// Setup problems are returned as errors; the outcome of the deployment itself is
// reported through the result.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "deployer")

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	target, backupRoot, err := prepareTarget(cfg, opts)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = logger.WithKV(ctx, "run_id", runID)

	logger.InfoKV(ctx, "Starting deployment",
		"instance", target.BaseURL, "package_date", target.PackageDate, "backup_root", backupRoot)

	var (
		fs     = osfs.New(backupRoot)
		client = erp.NewClient(erp.WithCallTimeout(cfg.RequestTimeout))
		deps   = Dependencies{
			Resolver:  resolver.New(fs, cfg.Projects),
			Sessions:  session.NewManager(client),
			Uploader:  uploader.New(client, fs, cfg.MaxPackageSize),
			Publisher: publisher.New(client, cfg.Publish),
			Poller:    poller.New(client, cfg.Poll),
		}
		settings = Settings{
			UploadDelay:     *cfg.UploadDelay,
			PublishDelay:    *cfg.PublishDelay,
			WarningExitCode: cfg.WarningExitCode,
		}
	)

	result := New(deps, settings).Deploy(ctx, target)
	result.RunID = runID

	if opts.ReportPath != "" {
		saveReport(ctx, report.NewFileRepository(opts.ReportPath), result)
	}

	return result, nil
}

// saveReport persists the run report. A failure only costs the report, never the run.
func saveReport(ctx context.Context, repo report.Repository, result *Result) bool {
	if err := repo.Save(ctx, result.Report()); err != nil {
		logger.WarnKV(ctx, "Failed to write run report", "error", err)
		return false
	}

	logger.InfoKV(ctx, "Run report written", "run_id", result.RunID)

	return true
}

// prepareTarget validates the run inputs against the settings.
func prepareTarget(cfg *config.Config, opts *Options) (Target, string, error) {
	baseURL, err := cfg.ResolveInstance(opts.Instance)
	if err != nil {
		return Target{}, "", err
	}

	if strings.TrimSpace(opts.Username) == "" || opts.Password == "" {
		return Target{}, "", errCredentialsRequired
	}

	packageDate := strings.TrimSpace(opts.PackageDate)
	if packageDate == "" {
		return Target{}, "", errPackageDateRequired
	}

	backupRoot := cfg.BackupRoot
	if opts.BackupRoot != "" {
		backupRoot = opts.BackupRoot
	}

	if backupRoot == "" {
		return Target{}, "", errBackupRootRequired
	}

	return Target{
		BaseURL:     baseURL,
		Username:    strings.TrimSpace(opts.Username),
		Password:    opts.Password,
		PackageDate: packageDate,
	}, backupRoot, nil
}

// Report converts the result into its persisted form.
func (r *Result) Report() *deployment.Report {
	rep := &deployment.Report{
		RunID:            r.RunID,
		Instance:         r.Instance,
		PackageDate:      r.PackageDate,
		Outcome:          r.Outcome.String(),
		Uploaded:         append([]string{}, r.Uploaded...),
		PublishRequested: r.PublishRequested,
		Summary:          r.Summary(),
		ExitCode:         r.ExitCode(),
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}

	if r.FinalStatus != nil {
		rep.FinalStatus = r.FinalStatus.Kind.String()
		rep.Detail = r.FinalStatus.Detail
	}

	if r.Err != nil {
		rep.Error = r.Err.Error()
	}

	return rep
}
