package erp

import "strings"

// LoginRequest is the body of the login exchange.
type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// ImportRequest uploads one customization project.
type ImportRequest struct {
	ProjectLevel         int    `json:"projectLevel"`
	IsReplaceIfExists    bool   `json:"isReplaceIfExists"`
	ProjectName          string `json:"projectName"`
	ProjectDescription   string `json:"projectDescription"`
	ProjectContentBase64 string `json:"projectContentBase64"`
}

// PublishRequest starts publication of uploaded projects.
type PublishRequest struct {
	IsMergeWithExistingPackages       bool     `json:"isMergeWithExistingPackages"`
	IsOnlyValidation                  bool     `json:"isOnlyValidation"`
	IsOnlyDBUpdates                   bool     `json:"isOnlyDbUpdates"`
	IsReplayPreviouslyExecutedScripts bool     `json:"isReplayPreviouslyExecutedScripts"`
	ProjectNames                      []string `json:"projectNames"`
	TenantMode                        string   `json:"tenantMode"`
}

// PublishStatus is the answer of the publishEnd call.
type PublishStatus struct {
	IsCompleted bool       `json:"isCompleted"`
	IsFailed    bool       `json:"isFailed"`
	Log         []LogEntry `json:"log"`
}

// Log entry types reported by the publication.
const (
	LogTypeInformation = "information"
	LogTypeWarning     = "warning"
	LogTypeError       = "error"
)

// LogEntry is one line of the publication log.
type LogEntry struct {
	Timestamp string `json:"timestamp,omitempty"`
	LogType   string `json:"logType"`
	Message   string `json:"message"`
}

// Type returns the normalised log type.
func (e LogEntry) Type() string {
	return strings.ToLower(strings.TrimSpace(e.LogType))
}
