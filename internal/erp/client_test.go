package erp_test

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

// TestClient_LoginStoresCookie verifies a successful login yields a session with the cookie.
func TestClient_LoginStoresCookie(t *testing.T) {
	t.Parallel()

	server := erptest.New(t)
	client := erp.NewClient()

	session, err := client.Login(context.Background(), server.URL+"/", "admin", "secret")
	require.NoError(t, err)
	require.True(t, session.Valid())
	require.Equal(t, server.URL, session.BaseURL)

	cookies := client.Cookies(session)
	require.Len(t, cookies, 1)
	require.Equal(t, erptest.SessionCookie, cookies[0].Name)
}

// TestClient_LoginRejected surfaces the HTTP status of a refused login.
func TestClient_LoginRejected(t *testing.T) {
	t.Parallel()

	server := erptest.New(t)

	_, err := erp.NewClient().Login(context.Background(), server.URL, "admin", "wrong")

	var statusErr *erp.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	require.Equal(t, "login", statusErr.Operation)
	require.Contains(t, statusErr.Body, "invalid credentials")
}

// TestClient_ImportPublishStatus walks through the calls of a deployment.
func TestClient_ImportPublishStatus(t *testing.T) {
	t.Parallel()

	server := erptest.New(t)
	server.Statuses = []erp.PublishStatus{
		{IsCompleted: true, Log: []erp.LogEntry{{LogType: "Information", Message: "done"}}},
	}

	ctx := context.Background()
	client := erp.NewClient(erp.WithCallTimeout(time.Second))

	session, err := client.Login(ctx, server.URL, "admin", "secret")
	require.NoError(t, err)

	require.NoError(t, client.Import(ctx, session, &erp.ImportRequest{ProjectName: "RW.Base", ProjectLevel: 1}))
	require.NoError(t, client.PublishBegin(ctx, session, &erp.PublishRequest{ProjectNames: []string{"RW.Base"}}))

	status, err := client.PublishEnd(ctx, session)
	require.NoError(t, err)
	require.True(t, status.IsCompleted)
	require.Equal(t, erp.LogTypeInformation, status.Log[0].Type())

	require.NoError(t, client.Logout(ctx, session))
	require.False(t, session.Valid())
	require.Equal(t, []string{"login", "import RW.Base", "publish", "status", "logout"}, server.Calls())
}

// TestClient_RequiresSession rejects calls without a live session.
func TestClient_RequiresSession(t *testing.T) {
	t.Parallel()

	client := erp.NewClient()
	ctx := context.Background()

	require.ErrorIs(t, client.Import(ctx, nil, new(erp.ImportRequest)), deployment.ErrNoSession)
	require.ErrorIs(t, client.PublishBegin(ctx, nil, new(erp.PublishRequest)), deployment.ErrNoSession)

	_, err := client.PublishEnd(ctx, nil)
	require.ErrorIs(t, err, deployment.ErrNoSession)
	require.ErrorIs(t, client.Logout(ctx, nil), deployment.ErrNoSession)
}

// TestClient_LogoutInvalidatesOnFailure keeps the session closed even when logout is refused.
func TestClient_LogoutInvalidatesOnFailure(t *testing.T) {
	t.Parallel()

	server := erptest.New(t)
	server.LogoutStatus = http.StatusInternalServerError

	client := erp.NewClient()

	session, err := client.Login(context.Background(), server.URL, "admin", "secret")
	require.NoError(t, err)

	err = client.Logout(context.Background(), session)

	var statusErr *erp.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.False(t, session.Valid())
}

// TestClient_EmptyBaseURL validates login input.
func TestClient_EmptyBaseURL(t *testing.T) {
	t.Parallel()

	_, err := erp.NewClient().Login(context.Background(), " ", "admin", "secret")
	require.Error(t, err)
}
