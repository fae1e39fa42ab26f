package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/customization-deployer/internal/domain/deployment"
	"github.com/oshokin/customization-deployer/internal/erp"
	"github.com/oshokin/customization-deployer/internal/erp/erptest"
)

var errTestLogout = errors.New("connection reset")

// fakeAPI records logout calls and fails them on demand.
type fakeAPI struct {
	logoutErr     error
	logouts       int
	logoutCtxErrs []error
}

func (f *fakeAPI) Login(context.Context, string, string, string) (*deployment.Session, error) {
	return deployment.NewSession("https://erp.example.com", new(http.Client), time.Now()), nil
}

func (f *fakeAPI) Logout(ctx context.Context, _ *deployment.Session) error {
	f.logouts++
	f.logoutCtxErrs = append(f.logoutCtxErrs, ctx.Err())

	return f.logoutErr
}

// TestManager_LoginAgainstFake verifies success and AuthenticationError wrapping.
func TestManager_LoginAgainstFake(t *testing.T) {
	t.Parallel()

	server := erptest.New(t)
	manager := NewManager(erp.NewClient())

	session, err := manager.Login(context.Background(), server.URL, "admin", "secret")
	require.NoError(t, err)
	require.True(t, session.Valid())

	require.True(t, manager.Logout(context.Background(), session))
	require.False(t, session.Valid())
	require.Equal(t, 1, server.Logouts())

	_, err = manager.Login(context.Background(), server.URL, "admin", "nope")

	var authErr *deployment.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, server.URL, authErr.BaseURL)

	var statusErr *erp.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

// TestManager_LoginNetworkFailure reports an unreachable instance as an authentication failure.
func TestManager_LoginNetworkFailure(t *testing.T) {
	t.Parallel()

	server := erptest.New(t)
	url := server.URL
	server.Close()

	_, err := NewManager(erp.NewClient()).Login(context.Background(), url, "admin", "secret")

	var authErr *deployment.AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

// TestManager_LogoutIsBestEffort swallows logout failures and never calls twice.
func TestManager_LogoutIsBestEffort(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{logoutErr: errTestLogout}
	manager := NewManager(api)

	session, err := manager.Login(context.Background(), "https://erp.example.com", "admin", "secret")
	require.NoError(t, err)

	require.False(t, manager.Logout(context.Background(), session))
	require.False(t, manager.Logout(context.Background(), session))
	require.False(t, manager.Logout(context.Background(), nil))

	require.Equal(t, 1, api.logouts)
	require.False(t, session.Valid())
}

// TestManager_LogoutSurvivesCancelledContext still logs out after the run was cancelled.
func TestManager_LogoutSurvivesCancelledContext(t *testing.T) {
	t.Parallel()

	api := new(fakeAPI)
	manager := NewManager(api)

	session, err := manager.Login(context.Background(), "https://erp.example.com", "admin", "secret")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.True(t, manager.Logout(ctx, session))

	require.Equal(t, 1, api.logouts)
	require.NoError(t, api.logoutCtxErrs[0])
}
