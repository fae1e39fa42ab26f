package session

import (
	"context"
	"time"

	"github.com/oshokin/customization-deployer/internal/domain/deployment"
	"github.com/oshokin/customization-deployer/internal/logger"
)

// DefaultTeardownTimeout bounds the logout call.
const DefaultTeardownTimeout = 30 * time.Second

// API is the part of the customization API used to open and close sessions.
type API interface {
	Login(ctx context.Context, baseURL, username, password string) (*deployment.Session, error)
	Logout(ctx context.Context, session *deployment.Session) error
}

// Manager logs in and out of an instance.
type Manager struct {
	api             API
	teardownTimeout time.Duration
}

// NewManager creates a session manager on top of api.
func NewManager(api API) *Manager {
	return &Manager{
		api:             api,
		teardownTimeout: DefaultTeardownTimeout,
	}
}

// Login performs one authentication exchange. Failures are not retried.
func (m *Manager) Login(ctx context.Context, baseURL, username, password string) (*deployment.Session, error) {
	logger.InfoKV(ctx, "Authenticating", "instance", baseURL, "username", username)

	session, err := m.api.Login(ctx, baseURL, username, password)
	if err != nil {
		logger.ErrorKV(ctx, "Authentication failed", "instance", baseURL, "error", err)

		return nil, &deployment.AuthenticationError{BaseURL: baseURL, Err: err}
	}

	logger.InfoKV(ctx, "Authentication successful", "instance", session.BaseURL)

	return session, nil
}

// Logout releases the session and reports whether the instance confirmed it.
// It never fails the run: problems are logged and the session is closed locally
// anyway. A cancelled ctx does not prevent the logout request.
func (m *Manager) Logout(ctx context.Context, session *deployment.Session) bool {
	if !session.Valid() {
		logger.DebugKV(ctx, "No live session, skipping logout")
		return false
	}

	defer session.Close()

	teardownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.teardownTimeout)
	defer cancel()

	logger.InfoKV(ctx, "Logging out", "instance", session.BaseURL)

	if err := m.api.Logout(teardownCtx, session); err != nil {
		logger.WarnKV(ctx, "Logout encountered an issue", "instance", session.BaseURL, "error", err)
		return false
	}

	logger.Info(ctx, "Logout successful")

	return true
}
