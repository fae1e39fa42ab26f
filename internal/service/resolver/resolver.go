package resolver

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/customization-deployer/internal/config"
	"github.com/oshokin/customization-deployer/internal/domain/deployment"
	"github.com/oshokin/customization-deployer/internal/logger"
)

// ManifestFilename is an optional catalog inside a package directory that
// replaces the configured project list for that directory.
const ManifestFilename = "packages.yaml"

var (
	// packageDatePattern matches identifiers such as 21-03-2025-2.
	packageDatePattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}-\d+$`)

	errBadPackageDate = errors.New("package date must look like DD-MM-YYYY-n")
	errNotDirectory   = errors.New("not a directory")
	errEmptyCatalog   = errors.New("no projects declared")
	errNoPackages     = errors.New("no package files found")
)

// manifest is the layout of ManifestFilename.
type manifest struct {
	Projects []config.Project `yaml:"projects"`
}

// Resolver maps package-date directories below a backup root to project lists.
type Resolver struct {
	// fs is rooted at the backup root.
	fs billy.Filesystem
	// catalog is the configured project list in declaration order.
	catalog []config.Project
}

// New creates a resolver over fs using catalog unless a directory carries its own manifest.
func New(fs billy.Filesystem, catalog []config.Project) *Resolver {
	return &Resolver{
		fs:      fs,
		catalog: slices.Clone(catalog),
	}
}

// Resolve returns the projects of packageDate sorted by publish level.
// Projects sharing a level keep their declaration order.
func (r *Resolver) Resolve(ctx context.Context, packageDate string) ([]deployment.ProjectConfig, error) {
	if !packageDatePattern.MatchString(packageDate) {
		return nil, &deployment.ConfigResolutionError{
			Path: packageDate,
			Err:  errBadPackageDate,
		}
	}

	directory := packageDate
	fail := func(path string, err error) ([]deployment.ProjectConfig, error) {
		return nil, &deployment.ConfigResolutionError{Path: r.display(path), Err: err}
	}

	info, err := r.fs.Stat(directory)
	if err != nil {
		return fail(directory, err)
	}

	if !info.IsDir() {
		return fail(directory, errNotDirectory)
	}

	catalog, err := r.catalogFor(ctx, directory)
	if err != nil {
		return fail(r.fs.Join(directory, ManifestFilename), err)
	}

	if len(catalog) == 0 {
		return fail(directory, errEmptyCatalog)
	}

	projects := make([]deployment.ProjectConfig, 0, len(catalog))

	for _, project := range catalog {
		path := r.fs.Join(directory, project.File)

		if _, err = r.fs.Stat(path); err != nil {
			if project.Optional && errors.Is(err, os.ErrNotExist) {
				logger.WarnKV(ctx, "Optional package file not found, skipping",
					"project", project.Name, "path", r.display(path))

				continue
			}

			return fail(path, err)
		}

		projects = append(projects, deployment.ProjectConfig{
			FilePath:        path,
			Name:            project.Name,
			Description:     project.Description,
			Level:           project.Level,
			ReplaceIfExists: !project.KeepExisting,
		})
	}

	if len(projects) == 0 {
		return fail(directory, errNoPackages)
	}

	slices.SortStableFunc(projects, func(a, b deployment.ProjectConfig) int {
		return cmp.Compare(a.Level, b.Level)
	})

	logger.InfoKV(ctx, "Resolved package directory",
		"path", r.display(directory), "projects", len(projects))

	return projects, nil
}

// catalogFor returns the directory manifest when present, otherwise the configured catalog.
func (r *Resolver) catalogFor(ctx context.Context, directory string) ([]config.Project, error) {
	contents, err := util.ReadFile(r.fs, r.fs.Join(directory, ManifestFilename))
	if errors.Is(err, os.ErrNotExist) {
		return r.catalog, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err = yaml.Unmarshal(contents, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	if err = config.ValidateProjects(m.Projects); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Using package manifest from directory", "projects", len(m.Projects))

	return m.Projects, nil
}

// display renders a filesystem path including the backup root.
func (r *Resolver) display(path string) string {
	return r.fs.Join(r.fs.Root(), path)
}
