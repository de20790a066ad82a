package connection

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Client represents a single event stream from the backend.
type Client interface {
	// Connect opens the stream and starts reading frames.
	Connect(ctx context.Context) error

	// Close tears the stream down. Safe to call more than once.
	Close() error

	// Frames returns a channel of raw event frames.
	Frames() <-chan Frame

	// Errors returns a channel of stream errors.
	Errors() <-chan error

	// IsConnected returns current stream state.
	IsConnected() bool
}

// client implements Client over a server-sent-events HTTP response.
type client struct {
	cfg        ClientConfig
	logger     *slog.Logger
	httpClient *http.Client

	frames chan Frame
	errors chan error
	done   chan struct{}

	mu        sync.RWMutex
	connected bool
	closed    bool
	cancel    context.CancelFunc
}

// NewClient creates a new event stream client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 100
	}

	return &client{
		cfg:    cfg,
		logger: logger,
		// No client timeout: the stream stays open indefinitely. Cancellation
		// comes from the request context.
		httpClient: &http.Client{},
		frames:     make(chan Frame, cfg.BufferSize),
		errors:     make(chan error, 1),
		done:       make(chan struct{}),
	}
}

// Connect opens the stream.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	c.mu.Lock()
	c.cancel = cancel
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(resp)

	c.logger.Debug("event stream connected", "url", c.cfg.URL)
	return nil
}

// Close tears the stream down.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	cancel := c.cancel
	c.mu.Unlock()

	close(c.done)
	if cancel != nil {
		cancel()
	}
	return nil
}

// Frames returns the frames channel.
func (c *client) Frames() <-chan Frame {
	return c.frames
}

// Errors returns the errors channel.
func (c *client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current stream state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// readLoop parses the event stream line by line. An event is one or more
// "data:" lines, optionally preceded by an "event:" line, terminated by a
// blank line.
func (c *client) readLoop(resp *http.Response) {
	defer resp.Body.Close()
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var event string
	var data bytes.Buffer

	for scanner.Scan() {
		line := scanner.Bytes()

		if len(line) == 0 {
			if data.Len() > 0 {
				frame := Frame{
					Event:      event,
					Data:       append([]byte(nil), data.Bytes()...),
					ReceivedAt: time.Now(),
				}
				select {
				case c.frames <- frame:
				case <-c.done:
					return
				default:
					c.logger.Warn("frame buffer full, dropping frame")
				}
			}
			event = ""
			data.Reset()
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimPrefix(bytes.TrimPrefix(line, []byte("data:")), []byte(" ")))
		case bytes.HasPrefix(line, []byte("event:")):
			event = string(bytes.TrimSpace(bytes.TrimPrefix(line, []byte("event:"))))
		case bytes.HasPrefix(line, []byte(":")):
			// Comment line, keepalive. Ignore.
		}
	}

	err := scanner.Err()

	// Ignore errors after Close() is called
	select {
	case <-c.done:
		return
	default:
	}

	if err == nil {
		err = fmt.Errorf("event stream closed by server")
	}
	select {
	case c.errors <- err:
	default:
	}
}
