package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// APIError represents an error response from the KubeCloud API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kubecloud api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsAuthError returns true if the credential was rejected.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// RequestOptions attaches user-facing messages to a single request. Zero
// value means silent.
type RequestOptions struct {
	LoadingMessage string
	SuccessMessage string
	ErrorMessage   string
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, token string) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	return respBody, nil
}

// doRequest performs one authenticated request. When the backend rejects the
// credential it refreshes the token once and resends; a second rejection or a
// failed refresh ends the session.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	tokens := c.tokenSource()

	respBody, err := c.send(ctx, method, path, query, body, tokens.Token())
	if err == nil {
		return respBody, nil
	}

	apiErr, ok := err.(*APIError)
	if !ok || !apiErr.IsAuthError() {
		return nil, err
	}

	fresh, refreshErr := tokens.Refresh(ctx)
	if refreshErr != nil {
		c.logger.Warn("token refresh failed", "path", path, "error", refreshErr)
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	c.logger.Debug("retrying request with refreshed token", "path", path)

	respBody, err = c.send(ctx, method, path, query, body, fresh)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.IsAuthError() {
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		return nil, err
	}
	return respBody, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		respBody, err := c.doRequest(ctx, method, path, query, body)
		if err == nil {
			return respBody, nil
		}

		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// do runs a request end to end: marshals the body, reports loading and
// outcome messages when opts asks for them, and unmarshals into result.
// The loading message appears only once the request has run longer than the
// configured delay. Backoff retries apply only when retry is true; requests
// that are not idempotent must not be replayed automatically.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any, opts *RequestOptions, retry bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	var stopLoading func()
	if opts != nil && opts.LoadingMessage != "" && c.reporter != nil {
		stopLoading = c.startLoading(opts.LoadingMessage)
	}

	var respBody []byte
	var err error
	if retry {
		respBody, err = c.doWithRetry(ctx, method, path, query, payload)
	} else {
		respBody, err = c.doRequest(ctx, method, path, query, payload)
	}

	if stopLoading != nil {
		stopLoading()
	}

	if err != nil {
		if opts != nil && opts.ErrorMessage != "" && c.reporter != nil {
			c.reporter.Error(opts.ErrorMessage)
		}
		return err
	}

	if opts != nil && opts.SuccessMessage != "" && c.reporter != nil {
		c.reporter.Success(opts.SuccessMessage)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// startLoading shows msg after the loading delay elapses. The returned stop
// function cancels the pending show or removes an already shown message, and
// is safe to call exactly once. The id handoff happens under a mutex so a
// stop racing the show still removes the message, whichever side loses.
func (c *Client) startLoading(msg string) func() {
	var mu sync.Mutex
	var id string
	var shown, stopped bool

	timer := time.AfterFunc(c.loadingDelay, func() {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		mu.Unlock()

		toastID := c.reporter.Loading(msg)

		mu.Lock()
		if stopped {
			mu.Unlock()
			c.reporter.Remove(toastID)
			return
		}
		id = toastID
		shown = true
		mu.Unlock()
	})

	return func() {
		timer.Stop()

		mu.Lock()
		stopped = true
		remove := shown
		toastID := id
		mu.Unlock()

		if remove {
			c.reporter.Remove(toastID)
		}
	}
}

// get performs a GET request with retries.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, result, nil, true)
}

func (c *Client) post(ctx context.Context, path string, body, result any, opts *RequestOptions) error {
	return c.do(ctx, http.MethodPost, path, nil, body, result, opts, false)
}

func (c *Client) patch(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, result, nil, false)
}

func (c *Client) del(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, nil, false)
}

// IsSessionExpired reports whether err means the credential is gone for good.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
