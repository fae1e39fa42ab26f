package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds deployment settings shared by every run.
type Config struct {
	// Instances maps instance aliases to their base URLs.
	Instances map[string]string `yaml:"instances"`
	// BackupRoot is the directory holding dated package folders.
	BackupRoot string `yaml:"backup_root"`
	// RequestTimeout bounds every HTTP call to the instance.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// UploadDelay is the pause between login and the first upload.
	UploadDelay *time.Duration `yaml:"upload_delay"`
	// PublishDelay is the pause between the last upload and the publish request.
	PublishDelay *time.Duration `yaml:"publish_delay"`
	// MaxPackageSize rejects larger package files before they are sent. Zero disables the check.
	MaxPackageSize int64 `yaml:"max_package_size"`
	// Poll controls publication status monitoring.
	Poll Poll `yaml:"poll"`
	// Publish holds the options sent with the publish request.
	Publish Publish `yaml:"publish"`
	// WarningExitCode is the exit status of a run whose publication ended with warnings.
	WarningExitCode int `yaml:"warning_exit_code"`
	// Projects is the ordered package catalog expected in every package directory.
	Projects []Project `yaml:"projects"`
}

// Poll controls how publication status is polled.
type Poll struct {
	// Interval is the pause before every status query.
	Interval time.Duration `yaml:"interval"`
	// Timeout is the total time allowed for the publication to reach a terminal status.
	Timeout time.Duration `yaml:"timeout"`
	// MaxRetries is the number of consecutive failed queries tolerated before giving up.
	MaxRetries int `yaml:"max_retries"`
}

// Publish mirrors the switches of the publish request.
type Publish struct {
	MergeWithExistingPackages       bool   `yaml:"merge_with_existing_packages"`
	OnlyValidation                  bool   `yaml:"only_validation"`
	OnlyDBUpdates                   bool   `yaml:"only_db_updates"`
	ReplayPreviouslyExecutedScripts bool   `yaml:"replay_previously_executed_scripts"`
	TenantMode                      string `yaml:"tenant_mode"`
}

// Project declares one customization package of the catalog.
type Project struct {
	// File is the package file name inside the package directory.
	File string `yaml:"file"`
	// Name is the project name registered on the instance.
	Name string `yaml:"name"`
	// Description is shown on the instance next to the project.
	Description string `yaml:"description"`
	// Level orders publication, lower levels first.
	Level int `yaml:"level"`
	// Optional projects are skipped when their file is absent.
	Optional bool `yaml:"optional"`
	// KeepExisting disables replacing a project that already exists on the instance.
	KeepExisting bool `yaml:"keep_existing"`
}

const (
	// DefaultConfigFilename is the default filename for deployment settings.
	DefaultConfigFilename = "customization-deployer.yaml"

	// DefaultRequestTimeout bounds a single HTTP call.
	DefaultRequestTimeout = 5 * time.Minute

	// DefaultUploadDelay is the pause before uploads start.
	DefaultUploadDelay = 3 * time.Second

	// DefaultPublishDelay is the pause before publication starts.
	DefaultPublishDelay = 5 * time.Second

	// DefaultPollInterval is the pause between publication status queries.
	DefaultPollInterval = 5 * time.Second

	// DefaultPollTimeout is how long publication may run before the run gives up.
	DefaultPollTimeout = 60 * time.Minute

	// DefaultPollRetries is the number of consecutive failed status queries tolerated.
	DefaultPollRetries = 3

	// DefaultTenantMode publishes to the tenant the user is logged into.
	DefaultTenantMode = "Current"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errProjectFileRequired is returned when a catalog entry has no file name.
	errProjectFileRequired = errors.New("project file must be provided")
	// errProjectNameRequired is returned when a catalog entry has no project name.
	errProjectNameRequired = errors.New("project name must be provided")
	// errDuplicateProject is returned when two catalog entries share a project name.
	errDuplicateProject = errors.New("duplicate project name")
	// errInvalidInstanceURL is returned when an instance URL is not absolute.
	errInvalidInstanceURL = errors.New("instance URL must be absolute http(s)")
	// errNegativeExitCode is returned for a negative warning exit code.
	errNegativeExitCode = errors.New("warning exit code must not be negative")
)

// Default returns a configuration with every default applied and an empty catalog.
func Default() *Config {
	cfg := new(Config)

	// Validate only fails on user supplied values, none are set here.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	if _, err := os.Stat(filepath.Clean(path)); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return Load(path)
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks user supplied values and fills in defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	for alias, rawURL := range cfg.Instances {
		if err := validateInstanceURL(rawURL); err != nil {
			return fmt.Errorf("instance %q: %w", alias, err)
		}
	}

	if err := validateProjects(cfg.Projects); err != nil {
		return err
	}

	if cfg.WarningExitCode < 0 {
		return errNegativeExitCode
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	if cfg.UploadDelay == nil || *cfg.UploadDelay < 0 {
		cfg.UploadDelay = durationPtr(DefaultUploadDelay)
	}

	if cfg.PublishDelay == nil || *cfg.PublishDelay < 0 {
		cfg.PublishDelay = durationPtr(DefaultPublishDelay)
	}

	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = DefaultPollInterval
	}

	if cfg.Poll.Timeout <= 0 {
		cfg.Poll.Timeout = DefaultPollTimeout
	}

	if cfg.Poll.MaxRetries <= 0 {
		cfg.Poll.MaxRetries = DefaultPollRetries
	}

	if cfg.Publish.TenantMode == "" {
		cfg.Publish.TenantMode = DefaultTenantMode
	}

	return nil
}

// ResolveInstance maps an alias from the instance table to its URL.
// Values that are not aliases are accepted when they are absolute http(s) URLs.
// The result never carries a trailing slash.
func (c *Config) ResolveInstance(aliasOrURL string) (string, error) {
	value := strings.TrimSpace(aliasOrURL)
	if mapped, ok := c.Instances[value]; ok {
		value = mapped
	}

	if err := validateInstanceURL(value); err != nil {
		return "", fmt.Errorf("instance %q: %w", aliasOrURL, err)
	}

	return strings.TrimRight(value, "/"), nil
}

// ValidateProjects checks a catalog for missing fields and duplicate names.
func ValidateProjects(projects []Project) error {
	return validateProjects(projects)
}

func validateProjects(projects []Project) error {
	seen := make(map[string]struct{}, len(projects))

	for i, p := range projects {
		if strings.TrimSpace(p.File) == "" {
			return fmt.Errorf("project #%d: %w", i+1, errProjectFileRequired)
		}

		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("project #%d (%s): %w", i+1, p.File, errProjectNameRequired)
		}

		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: %s", errDuplicateProject, p.Name)
		}

		seen[p.Name] = struct{}{}
	}

	return nil
}

func validateInstanceURL(rawURL string) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidInstanceURL, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errInvalidInstanceURL
	}

	return nil
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
