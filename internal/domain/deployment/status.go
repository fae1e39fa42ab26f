package deployment

// StatusKind enumerates publication states reported by the instance.
type StatusKind int

const (
	// StatusPending means the publication has not reported progress yet.
	StatusPending StatusKind = iota
	// StatusInProgress means the publication is running.
	StatusInProgress
	// StatusSucceeded means the publication finished cleanly.
	StatusSucceeded
	// StatusWarning means the publication finished with warnings.
	StatusWarning
	// StatusFailed means the publication finished with errors.
	StatusFailed
)

// String returns the display name of the kind.
func (k StatusKind) String() string {
	switch k {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "InProgress"
	case StatusSucceeded:
		return "Succeeded"
	case StatusWarning:
		return "Warning"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// PublicationStatus is one observation of a publication.
type PublicationStatus struct {
	// Kind is the state of the publication.
	Kind StatusKind
	// Detail is an optional human readable message.
	Detail string
}

// IsTerminal reports whether no further change is expected after this status.
func (s PublicationStatus) IsTerminal() bool {
	switch s.Kind {
	case StatusSucceeded, StatusWarning, StatusFailed:
		return true
	case StatusPending, StatusInProgress:
		return false
	default:
		return false
	}
}

// IsSuccess reports whether the publication ended without errors.
func (s PublicationStatus) IsSuccess() bool {
	return s.Kind == StatusSucceeded || s.Kind == StatusWarning
}

// String renders the status with its detail when present.
func (s PublicationStatus) String() string {
	if s.Detail == "" {
		return s.Kind.String()
	}

	return s.Kind.String() + ": " + s.Detail
}

// State is a step of the deployment state machine.
type State int

const (
	// StateInit is the state before login.
	StateInit State = iota
	// StateAuthenticated means a session exists.
	StateAuthenticated
	// StateUploading means packages are being uploaded.
	StateUploading
	// StatePublishing means the publish request is being sent.
	StatePublishing
	// StatePolling means publication status is being monitored.
	StatePolling
	// StateCompleted means the publication succeeded, possibly with warnings.
	StateCompleted
	// StateFailed means the run failed in an earlier state.
	StateFailed
	// StateLoggedOut is the terminal state reached by every run.
	StateLoggedOut
)

// String returns the display name of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateAuthenticated:
		return "Authenticated"
	case StateUploading:
		return "Uploading"
	case StatePublishing:
		return "Publishing"
	case StatePolling:
		return "Polling"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	case StateLoggedOut:
		return "LoggedOut"
	default:
		return "Unknown"
	}
}
