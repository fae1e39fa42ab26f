package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/customization-deployer/internal/domain/deployment"
)

// reportFilePermissions keeps reports readable by the build agent group.
const reportFilePermissions = 0o640

// Repository defines persistence operations for run reports.
type Repository interface {
	Load(ctx context.Context) (*deployment.Report, error)
	Save(ctx context.Context, report *deployment.Report) error
}

// FileRepository persists a run report to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON report.
	path string
	// mu serialises access to the report file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the report file does not exist yet.
	ErrNotFound = errors.New("report not found")
	// errReportIsNotSet is returned when saving a nil report.
	errReportIsNotSet = errors.New("report is not set")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the report from disk.
func (r *FileRepository) Load(_ context.Context) (*deployment.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read report file: %w", err)
	}

	var report deployment.Report
	if err = json.Unmarshal(contents, &report); err != nil {
		return nil, fmt.Errorf("decode report file: %w", err)
	}

	return &report, nil
}

// Save writes the report atomically: a temporary file is renamed over the target
// so readers never observe a partial report.
func (r *FileRepository) Save(_ context.Context, report *deployment.Report) error {
	if report == nil {
		return errReportIsNotSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "" {
		if err = os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	temporary := r.path + ".tmp"
	if err = os.WriteFile(temporary, data, reportFilePermissions); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}

	if err = os.Rename(temporary, r.path); err != nil {
		_ = os.Remove(temporary)

		return fmt.Errorf("replace report file: %w", err)
	}

	return nil
}
