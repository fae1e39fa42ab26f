package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/oshokin/customization-deployer/internal/config"
	"github.com/oshokin/customization-deployer/internal/domain/deployment"
)

const (
	loginPath        = "/entity/auth/login"
	logoutPath       = "/entity/auth/logout"
	importPath       = "/CustomizationApi/Import"
	publishBeginPath = "/CustomizationApi/publishBegin"
	publishEndPath   = "/CustomizationApi/publishEnd"

	// maxErrorBody caps how much of an error response is kept for diagnostics.
	maxErrorBody = 4 << 10
)

var (
	// errBaseURLRequired is returned when no instance URL is given.
	errBaseURLRequired = errors.New("base URL must be provided")
	// errNoCookies is returned when a login succeeds without setting a session cookie.
	errNoCookies = errors.New("login response did not set a session cookie")
)

// StatusError is returned for non-success HTTP responses.
type StatusError struct {
	// Operation names the API call, e.g. "import".
	Operation string
	// StatusCode is the HTTP status code.
	StatusCode int
	// Status is the HTTP status line.
	Status string
	// Body is the beginning of the response body.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected http status %s", e.Operation, e.Status)
	}

	return fmt.Sprintf("%s: unexpected http status %s: %s", e.Operation, e.Status, e.Body)
}

// Client calls the customization API of an instance.
type Client struct {
	// transport is shared by every session created by this client.
	transport http.RoundTripper
	// callTimeout is the default timeout for individual API calls.
	callTimeout time.Duration
	// now is the clock used to stamp sessions.
	now func() time.Time
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for API calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithTransport replaces the HTTP transport, mainly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.transport = rt
		}
	}
}

// NewClient creates a customization API client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		transport:   http.DefaultTransport,
		callTimeout: config.DefaultRequestTimeout,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Login authenticates against baseURL and returns a session holding the cookies.
func (c *Client) Login(ctx context.Context, baseURL, username, password string) (*deployment.Session, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	httpClient := &http.Client{
		Transport: c.transport,
		Jar:       jar,
	}

	request := LoginRequest{
		Name:     username,
		Password: password,
	}

	if err = c.post(ctx, httpClient, "login", baseURL+loginPath, request, nil); err != nil {
		return nil, err
	}

	session := deployment.NewSession(baseURL, httpClient, c.now())

	if len(c.Cookies(session)) == 0 {
		return nil, errNoCookies
	}

	return session, nil
}

// Logout ends the server side session and invalidates it locally.
// The session is invalidated even when the request fails.
func (c *Client) Logout(ctx context.Context, session *deployment.Session) error {
	if !session.Valid() {
		return deployment.ErrNoSession
	}

	defer session.Close()

	return c.post(ctx, session.HTTPClient, "logout", session.BaseURL+logoutPath, nil, nil)
}

// Import uploads one customization project.
func (c *Client) Import(ctx context.Context, session *deployment.Session, request *ImportRequest) error {
	if !session.Valid() {
		return deployment.ErrNoSession
	}

	return c.post(ctx, session.HTTPClient, "import", session.BaseURL+importPath, request, nil)
}

// PublishBegin starts publication of the named projects.
func (c *Client) PublishBegin(ctx context.Context, session *deployment.Session, request *PublishRequest) error {
	if !session.Valid() {
		return deployment.ErrNoSession
	}

	return c.post(ctx, session.HTTPClient, "publish begin", session.BaseURL+publishBeginPath, request, nil)
}

// PublishEnd queries the state of the running publication.
func (c *Client) PublishEnd(ctx context.Context, session *deployment.Session) (*PublishStatus, error) {
	if !session.Valid() {
		return nil, deployment.ErrNoSession
	}

	var status PublishStatus

	err := c.post(ctx, session.HTTPClient, "publish end", session.BaseURL+publishEndPath, struct{}{}, &status)
	if err != nil {
		return nil, err
	}

	return &status, nil
}

// Cookies returns the cookies the session sends to its instance.
func (c *Client) Cookies(session *deployment.Session) []*http.Cookie {
	if session == nil || session.HTTPClient == nil || session.HTTPClient.Jar == nil {
		return nil
	}

	request, err := http.NewRequest(http.MethodGet, session.BaseURL+"/", http.NoBody)
	if err != nil {
		return nil
	}

	return session.HTTPClient.Jar.Cookies(request.URL)
}

// post sends payload as JSON and decodes a JSON response into out when out is not nil.
func (c *Client) post(ctx context.Context, httpClient *http.Client, operation, url string, payload, out any) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	body := io.Reader(http.NoBody)

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}

		body = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", operation, err)
	}

	request.Header.Set("Accept", "application/json")
	request.Header.Set("Content-Type", "application/json")

	response, err := httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))

		return &StatusError{
			Operation:  operation,
			StatusCode: response.StatusCode,
			Status:     response.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}

	if err = json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
