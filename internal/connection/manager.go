package connection

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Manager owns the event stream lifecycle for one credential.
//
// State machine: Disconnected -> Connecting -> Connected. A stream error
// moves back to Disconnected and schedules a reconnect with exponential
// backoff, up to MaxReconnectAttempts. Reconnects due while the agent is
// hidden are deferred until it becomes visible again. Clearing the token or
// going offline tears the stream down and cancels any pending reconnect.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	// newClient is replaced in tests.
	newClient func(cfg ClientConfig, logger *slog.Logger) Client

	out chan Frame

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu                   sync.Mutex
	state                State
	token                string
	online               bool
	visible              bool
	attempts             int
	reconnectWhenVisible bool
	reconnectTimer       *time.Timer
	client               Client
	gen                  uint64 // invalidates in-flight dials and forward loops
}

// NewManager creates a connection manager. It does nothing until Start.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = 2 * time.Second
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = 5
	}
	if cfg.FrameBufferSize == 0 {
		cfg.FrameBufferSize = 100
	}

	return &Manager{
		cfg:       cfg,
		logger:    logger,
		newClient: NewClient,
		out:       make(chan Frame, cfg.FrameBufferSize),
		online:    true,
		visible:   true,
	}
}

// Start makes the manager live and connects if a token is already set.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.Connect()
	return nil
}

// Stop tears everything down and closes the frame channel.
func (m *Manager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.Disconnect()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Safe to close only once every forward loop has exited.
		close(m.out)
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, abandoning stream goroutines")
	}

	m.logger.Info("connection manager stopped")
	return nil
}

// Frames returns the channel of raw frames from the current stream.
func (m *Manager) Frames() <-chan Frame {
	return m.out
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetToken installs a new credential. An empty token is a logout: the stream
// is torn down and stays down until a token arrives.
func (m *Manager) SetToken(token string) {
	m.mu.Lock()
	if m.token == token {
		m.mu.Unlock()
		return
	}
	m.token = token
	m.mu.Unlock()

	m.Disconnect()
	if token != "" {
		m.Connect()
	}
}

// SetOnline reflects network availability. Going offline tears the stream
// down without touching the credential; coming back online resets the
// attempt counter and reconnects.
func (m *Manager) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	if online {
		m.attempts = 0
	}
	m.mu.Unlock()

	if online {
		m.Connect()
	} else {
		m.teardown()
	}
}

// SetVisible reflects agent visibility. A reconnect that came due while
// hidden runs as soon as the agent is visible again, with the attempt
// counter reset.
func (m *Manager) SetVisible(visible bool) {
	m.mu.Lock()
	m.visible = visible
	deferred := visible && m.reconnectWhenVisible
	if deferred {
		m.reconnectWhenVisible = false
		m.attempts = 0
	}
	m.mu.Unlock()

	if deferred {
		m.logger.Debug("running deferred reconnect")
		m.Connect()
	}
}

// Connect opens the stream if the manager is started, has a credential, is
// online, and is not already connecting or connected.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.ctx == nil || m.token == "" || !m.online || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	streamURL := m.eventsURL(m.token)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.dial(gen, streamURL)
}

// Disconnect tears the stream down, cancels any pending reconnect, and
// resets the attempt counter. Idempotent.
func (m *Manager) Disconnect() {
	m.teardown()

	m.mu.Lock()
	m.attempts = 0
	m.mu.Unlock()
}

// teardown stops the stream and the reconnect timer without touching the
// attempt counter. Callers decide when the counter resets.
func (m *Manager) teardown() {
	m.mu.Lock()
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.reconnectWhenVisible = false
	m.gen++
	cli := m.client
	m.client = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if cli != nil {
		cli.Close()
	}
}

func (m *Manager) eventsURL(token string) string {
	return m.cfg.BaseURL + "/v1/events?token=" + url.QueryEscape(token)
}

// dial opens a stream for generation gen. A teardown or newer connect bumps
// the generation, which makes this dial a no-op.
func (m *Manager) dial(gen uint64, streamURL string) {
	defer m.wg.Done()

	cli := m.newClient(ClientConfig{
		URL:        streamURL,
		BufferSize: m.cfg.FrameBufferSize,
	}, m.logger)

	err := cli.Connect(m.ctx)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		cli.Close()
		return
	}

	if err != nil {
		m.state = StateDisconnected
		m.mu.Unlock()
		m.logger.Warn("stream connect failed", "error", err)
		m.scheduleReconnect()
		return
	}

	m.client = cli
	m.state = StateConnected
	m.attempts = 0
	m.mu.Unlock()

	m.logger.Info("event stream connected")

	m.wg.Add(1)
	go m.forward(gen, cli)
}

// forward copies frames from the stream to the output channel until the
// stream errors or the manager stops.
func (m *Manager) forward(gen uint64, cli Client) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-cli.Errors():
			m.logger.Warn("event stream error", "error", err)
			cli.Close()

			m.mu.Lock()
			if gen == m.gen {
				m.client = nil
				m.state = StateDisconnected
			}
			stale := gen != m.gen
			m.mu.Unlock()

			if !stale {
				m.scheduleReconnect()
			}
			return

		case frame, ok := <-cli.Frames():
			if !ok {
				return
			}
			select {
			case m.out <- frame:
			case <-m.ctx.Done():
				return
			default:
				m.logger.Warn("frame buffer full, dropping frame")
			}
		}
	}
}

// scheduleReconnect arms the backoff timer for the next attempt, or gives up
// once the ceiling is reached.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()

	if m.token == "" || !m.online {
		m.mu.Unlock()
		return
	}
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		attempts := m.attempts
		m.mu.Unlock()
		m.logger.Error("reconnect attempts exhausted", "attempts", attempts)
		return
	}
	if !m.visible {
		m.reconnectWhenVisible = true
		m.mu.Unlock()
		m.logger.Debug("deferring reconnect until visible")
		return
	}

	delay := m.cfg.ReconnectBaseDelay * (1 << m.attempts)
	m.attempts++
	attempt := m.attempts
	m.reconnectTimer = time.AfterFunc(delay, m.Connect)
	m.mu.Unlock()

	m.logger.Info("scheduling reconnect", "attempt", attempt, "delay", delay)
}
