package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ErrSessionExpired is returned when the backend rejects the credential and
// no fresh token can be obtained. Callers should tear down the session.
var ErrSessionExpired = errors.New("api: session expired")

// TokenSource supplies the bearer token for outgoing requests. Refresh is
// called at most once per request when the backend answers 401 or 403.
type TokenSource interface {
	Token() string
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a fixed credential. It cannot refresh.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

func (t StaticToken) Refresh(ctx context.Context) (string, error) {
	return "", ErrSessionExpired
}

// Reporter receives user-facing progress for requests that ask for it. Each
// message method returns the id of the created notification; Remove dismisses
// a loading message by id.
type Reporter interface {
	Loading(message string) string
	Remove(id string)
	Success(message string) string
	Error(message string) string
}

// Client provides access to the KubeCloud REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	reporter   Reporter

	maxRetries   int
	retryBackoff time.Duration
	loadingDelay time.Duration

	mu     sync.RWMutex
	tokens TokenSource
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL string, tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
		loadingDelay: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetTokenSource replaces the credential source, e.g. after login or logout.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
}

func (c *Client) tokenSource() TokenSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithReporter sets the sink for per-request loading and outcome messages.
func WithReporter(r Reporter) ClientOption {
	return func(c *Client) {
		c.reporter = r
	}
}

// WithLoadingDelay sets how long a request must run before its loading
// message is shown.
func WithLoadingDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.loadingDelay = d
	}
}
