package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oshokin/customization-deployer/internal/config"
	"github.com/oshokin/customization-deployer/internal/logger"
	"github.com/oshokin/customization-deployer/internal/service/deployer"
	"github.com/oshokin/customization-deployer/internal/version"
)

// envPrefix prefixes the environment variables mirroring the flags,
// e.g. DEPLOYER_PASSWORD for --password.
const envPrefix = "DEPLOYER"

// Flag names.
const (
	flagConfig      = "config"
	flagInstanceURL = "instance-url"
	flagUsername    = "username"
	flagPassword    = "password"
	flagPackageDate = "package-date"
	flagBackupRoot  = "backup-root"
	flagReport      = "report"
	flagLogLevel    = "log-level"
)

var (
	// settings merges flags with DEPLOYER_* environment variables.
	settings = viper.New()

	// exitCode is the process status set by the last run.
	exitCode = deployer.ExitCompleted

	// rootCmd uploads and publishes the customization packages of one package date.
	rootCmd = &cobra.Command{
		Use:   "customization-deployer",
		Short: "Upload and publish customization packages to an ERP instance",
		Long: "Resolve the customization packages stored under <backup-root>/<package-date>, " +
			"upload them to the instance in level order, publish them in one request and wait for the result. " +
			"Every flag can also be set through a DEPLOYER_<FLAG> environment variable.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(settings.GetString(flagLogLevel))
			if !ok {
				return fmt.Errorf("unknown log level %q", settings.GetString(flagLogLevel))
			}

			logger.SetLevel(level)

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &deployer.Options{
				ConfigPath:  settings.GetString(flagConfig),
				Instance:    settings.GetString(flagInstanceURL),
				Username:    settings.GetString(flagUsername),
				Password:    settings.GetString(flagPassword),
				PackageDate: settings.GetString(flagPackageDate),
				BackupRoot:  settings.GetString(flagBackupRoot),
				ReportPath:  settings.GetString(flagReport),
			}

			result, err := deployer.Run(ctx, options)
			if err != nil {
				exitCode = deployer.ExitFailed
				return err
			}

			exitCode = result.ExitCode()

			return nil
		},
	}
)

// Execute runs the customization-deployer CLI and exits with the status of the run.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(deployer.ExitFailed)
	}

	os.Exit(exitCode)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	flags.StringP(flagConfig, "c", config.DefaultConfigFilename, "path to configuration file")
	flags.String(flagInstanceURL, "", "instance alias from the configuration file or its base URL")
	flags.String(flagUsername, "", "instance user name")
	flags.String(flagPassword, "", "instance password")
	flags.String(flagPackageDate, "", "package directory name, e.g. 21-03-2025-1")
	flags.String(flagBackupRoot, "", "directory holding the package directories, overrides backup_root")
	flags.String(flagReport, "", "write a JSON run report to this path")
	flags.String(flagLogLevel, "info", "log level: debug, info, warn or error")

	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	if err := settings.BindPFlags(flags); err != nil {
		panic(err)
	}
}
