package integration

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/customization-deployer/internal/config"
	"github.com/oshokin/customization-deployer/internal/domain/deployment"
	"github.com/oshokin/customization-deployer/internal/erp"
	"github.com/oshokin/customization-deployer/internal/erp/erptest"
	"github.com/oshokin/customization-deployer/internal/repository/report"
	"github.com/oshokin/customization-deployer/internal/service/deployer"
)

const packageDate = "21-03-2025-1"

// environment is a backup root with one package directory and a settings file
// pointing the "dev" alias at a fake instance.
type environment struct {
	server     *erptest.Server
	backupRoot string
	configPath string
}

func newEnvironment(t *testing.T, tune func(*config.Config)) *environment {
	t.Helper()

	var (
		server     = erptest.New(t)
		dir        = t.TempDir()
		backupRoot = filepath.Join(dir, "backups")
		packageDir = filepath.Join(backupRoot, packageDate)
	)

	require.NoError(t, os.MkdirAll(packageDir, 0o750))

	for _, name := range []string{"RW.Base.zip", "RW.Screens.zip", "RW.SiteMap.zip"} {
		require.NoError(t, os.WriteFile(filepath.Join(packageDir, name), []byte("PK "+name), 0o600))
	}

	zero := time.Duration(0)
	cfg := &config.Config{
		Instances:    map[string]string{"dev": server.URL + "/"},
		BackupRoot:   backupRoot,
		UploadDelay:  &zero,
		PublishDelay: &zero,
		Poll: config.Poll{
			Interval:   5 * time.Millisecond,
			Timeout:    2 * time.Second,
			MaxRetries: 2,
		},
		Projects: []config.Project{
			{File: "RW.SiteMap.zip", Name: "RW.SiteMap", Level: 2},
			{File: "RW.Base.zip", Name: "RW.Base", Level: 1},
			{File: "RW.Screens.zip", Name: "RW.Screens", Level: 1},
		},
	}

	if tune != nil {
		tune(cfg)
	}

	configPath := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(configPath, cfg))

	return &environment{
		server:     server,
		backupRoot: backupRoot,
		configPath: configPath,
	}
}

func (e *environment) options() *deployer.Options {
	return &deployer.Options{
		ConfigPath:  e.configPath,
		Instance:    "dev",
		Username:    e.server.Username,
		Password:    e.server.Password,
		PackageDate: packageDate,
	}
}

func (e *environment) importCalls() int {
	count := 0

	for _, call := range e.server.Calls() {
		if strings.HasPrefix(call, "import ") {
			count++
		}
	}

	return count
}

// TestRun_PublishesInLevelOrder deploys three packages end to end.
func TestRun_PublishesInLevelOrder(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, nil)
	reportPath := filepath.Join(t.TempDir(), "reports", "run.json")

	opts := env.options()
	opts.ReportPath = reportPath

	result, err := deployer.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, deployer.ExitCompleted, result.ExitCode())

	require.Equal(t, []string{
		"login", "import RW.Base", "import RW.Screens", "import RW.SiteMap", "publish", "status", "logout",
	}, env.server.Calls())

	publishes := env.server.Publishes()
	require.Len(t, publishes, 1)
	require.Equal(t, []string{"RW.Base", "RW.Screens", "RW.SiteMap"}, publishes[0].ProjectNames)
	require.Equal(t, config.DefaultTenantMode, publishes[0].TenantMode)

	imports := env.server.Imports()
	require.Equal(t, 1, imports[0].ProjectLevel)
	require.Equal(t, 2, imports[2].ProjectLevel)
	require.True(t, imports[0].IsReplaceIfExists)

	saved, err := report.NewFileRepository(reportPath).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, result.RunID, saved.RunID)
	require.Equal(t, deployment.StateCompleted.String(), saved.Outcome)
	require.Equal(t, deployment.StatusSucceeded.String(), saved.FinalStatus)
	require.Equal(t, []string{"RW.Base", "RW.Screens", "RW.SiteMap"}, saved.Uploaded)
}

// TestRun_AuthenticationFailure never uploads nor logs out.
func TestRun_AuthenticationFailure(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, nil)

	opts := env.options()
	opts.Password = "wrong"

	result, err := deployer.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, deployer.ExitFailed, result.ExitCode())
	require.Zero(t, env.importCalls())
	require.Zero(t, env.server.Logouts())

	var authErr *deployment.AuthenticationError
	require.ErrorAs(t, result.Err, &authErr)
}

// TestRun_UploadFailureLogsOut stops at the rejected package and still releases the session.
func TestRun_UploadFailureLogsOut(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, nil)
	env.server.ImportStatus["RW.Screens"] = 500

	result, err := deployer.Run(context.Background(), env.options())
	require.NoError(t, err)
	require.Equal(t, deployer.ExitFailed, result.ExitCode())
	require.Equal(t, 2, env.importCalls())
	require.Empty(t, env.server.Publishes())
	require.Equal(t, 1, env.server.Logouts())

	var statusErr *erp.StatusError
	require.ErrorAs(t, result.Err, &statusErr)
	require.Equal(t, 500, statusErr.StatusCode)
}

// TestRun_PollTimeout reports a publication that never settles as a timeout.
func TestRun_PollTimeout(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, func(cfg *config.Config) {
		cfg.Poll.Timeout = 60 * time.Millisecond
	})
	env.server.Statuses = []erp.PublishStatus{
		{Log: []erp.LogEntry{{LogType: erp.LogTypeInformation, Message: "Compiling"}}},
	}

	result, err := deployer.Run(context.Background(), env.options())
	require.NoError(t, err)
	require.Equal(t, deployer.ExitFailed, result.ExitCode())
	require.Equal(t, 1, env.server.Logouts())

	var timeoutErr *deployment.PollTimeoutError
	require.ErrorAs(t, result.Err, &timeoutErr)
	require.Contains(t, result.Summary(), "publication timeout")
}

// TestRun_WarningsCompleteTheRun treats a publication with warnings as a success.
func TestRun_WarningsCompleteTheRun(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, nil)
	env.server.StatusFailures = 1
	env.server.Statuses = []erp.PublishStatus{
		{},
		{
			IsCompleted: true,
			Log:         []erp.LogEntry{{LogType: erp.LogTypeWarning, Message: "Obsolete field RW.Base.Flag"}},
		},
	}

	result, err := deployer.Run(context.Background(), env.options())
	require.NoError(t, err)
	require.Equal(t, deployer.ExitCompleted, result.ExitCode())
	require.Equal(t, deployment.StatusWarning, result.FinalStatus.Kind)
	require.Contains(t, result.Summary(), "Obsolete field RW.Base.Flag")
	require.Equal(t, 3, env.server.StatusQueries())
	require.Equal(t, "logout", env.server.Calls()[len(env.server.Calls())-1])
}

// TestRun_PublicationFailed exits with the failure code and keeps the server messages.
func TestRun_PublicationFailed(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, nil)
	env.server.Statuses = []erp.PublishStatus{
		{
			IsCompleted: true,
			IsFailed:    true,
			Log:         []erp.LogEntry{{LogType: erp.LogTypeError, Message: "Compilation failed"}},
		},
	}

	result, err := deployer.Run(context.Background(), env.options())
	require.NoError(t, err)
	require.Equal(t, deployer.ExitFailed, result.ExitCode())
	require.Contains(t, result.Summary(), "Compilation failed")
	require.Equal(t, 1, env.server.Logouts())
}

// TestRun_OptionalPackageSkipped deploys without an optional package that is absent.
func TestRun_OptionalPackageSkipped(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, func(cfg *config.Config) {
		cfg.Projects = append(cfg.Projects, config.Project{
			File: "RW.Reports.zip", Name: "RW.Reports", Level: 3, Optional: true,
		})
	})

	result, err := deployer.Run(context.Background(), env.options())
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	require.False(t, slices.Contains(result.Uploaded, "RW.Reports"))
}

// TestRun_SetupErrors rejects incomplete inputs before contacting the instance.
func TestRun_SetupErrors(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, nil)

	cases := map[string]func(*deployer.Options){
		"unknown alias":     func(o *deployer.Options) { o.Instance = "prod" },
		"missing username":  func(o *deployer.Options) { o.Username = " " },
		"missing password":  func(o *deployer.Options) { o.Password = "" },
		"missing date":      func(o *deployer.Options) { o.PackageDate = "" },
		"unreadable config": func(o *deployer.Options) { o.ConfigPath = env.backupRoot },
	}

	for name, mutate := range cases {
		opts := env.options()
		mutate(opts)

		result, err := deployer.Run(context.Background(), opts)
		require.Error(t, err, name)
		require.Nil(t, result, name)
	}

	require.Empty(t, env.server.Calls())
}

// TestRun_BackupRootOverride reads packages from the directory given on the command line.
func TestRun_BackupRootOverride(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, nil)

	opts := env.options()
	opts.BackupRoot = t.TempDir()

	result, err := deployer.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, deployer.ExitFailed, result.ExitCode())

	var resolutionErr *deployment.ConfigResolutionError
	require.ErrorAs(t, result.Err, &resolutionErr)
	require.Empty(t, env.server.Calls())
}
