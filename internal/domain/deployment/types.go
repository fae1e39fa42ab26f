package deployment

import (
	"net/http"
	"slices"
	"time"
)

// ProjectConfig describes one package file to deploy.
type ProjectConfig struct {
	// FilePath locates the package file relative to the backup root.
	FilePath string
	// Name is the project name registered on the instance.
	Name string
	// Description is shown next to the project on the instance.
	Description string
	// Level orders publication, lower levels first.
	Level int
	// ReplaceIfExists overwrites a project with the same name on the instance.
	ReplaceIfExists bool
}

// Session is an authenticated connection to one instance.
// It belongs to a single run and is never persisted.
type Session struct {
	// BaseURL is the instance URL without a trailing slash.
	BaseURL string
	// CreatedAt is when the login exchange succeeded.
	CreatedAt time.Time
	// HTTPClient carries the authentication cookies in its jar.
	HTTPClient *http.Client

	closed bool
}

// NewSession wraps an authenticated HTTP client.
func NewSession(baseURL string, client *http.Client, createdAt time.Time) *Session {
	return &Session{
		BaseURL:    baseURL,
		CreatedAt:  createdAt,
		HTTPClient: client,
	}
}

// Valid reports whether the session can still be used for requests.
func (s *Session) Valid() bool {
	return s != nil && !s.closed && s.HTTPClient != nil
}

// Close marks the session as logged out.
func (s *Session) Close() {
	if s != nil {
		s.closed = true
	}
}

// UploadRecord is created once a package has been accepted by the instance.
type UploadRecord struct {
	// Project is the uploaded package.
	Project ProjectConfig
	// UploadedAt is when the upload was acknowledged.
	UploadedAt time.Time
	// ServerReference is the name the instance registered the project under.
	ServerReference string
}

// PublishHandle identifies an accepted publication.
type PublishHandle struct {
	// ProjectNames are the projects being published, in publish order.
	ProjectNames []string
	// AcceptedAt is when the instance accepted the publish request.
	AcceptedAt time.Time
}

// Clone returns a copy of the handle that does not share the name slice.
func (h PublishHandle) Clone() PublishHandle {
	return PublishHandle{
		ProjectNames: slices.Clone(h.ProjectNames),
		AcceptedAt:   h.AcceptedAt,
	}
}

// Report is the persisted outcome of a run.
type Report struct {
	RunID            string    `json:"run_id"`
	Instance         string    `json:"instance"`
	PackageDate      string    `json:"package_date"`
	Outcome          string    `json:"outcome"`
	FinalStatus      string    `json:"final_status,omitempty"`
	Detail           string    `json:"detail,omitempty"`
	Uploaded         []string  `json:"uploaded"`
	PublishRequested bool      `json:"publish_requested"`
	Error            string    `json:"error,omitempty"`
	Summary          string    `json:"summary"`
	ExitCode         int       `json:"exit_code"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}
