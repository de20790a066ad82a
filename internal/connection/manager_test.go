package connection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	closed     bool
	connectErr error
	frames     chan Frame
	errors     chan error
}

func (f *fakeClient) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	f.connected = false
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Frames() <-chan Frame { return f.frames }
func (f *fakeClient) Errors() <-chan error { return f.errors }

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeFactory hands out fake clients and records every dial.
type fakeFactory struct {
	mu        sync.Mutex
	clients   []*fakeClient
	urls      []string
	failFirst int
	failAll   bool
}

func (ff *fakeFactory) new(cfg ClientConfig, logger *slog.Logger) Client {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	fc := &fakeClient{
		frames: make(chan Frame, 10),
		errors: make(chan error, 1),
	}
	if ff.failAll || len(ff.clients) < ff.failFirst {
		fc.connectErr = errors.New("dial failed")
	}
	ff.clients = append(ff.clients, fc)
	ff.urls = append(ff.urls, cfg.URL)
	return fc
}

func (ff *fakeFactory) dials() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.clients)
}

func (ff *fakeFactory) last() *fakeClient {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if len(ff.clients) == 0 {
		return nil
	}
	return ff.clients[len(ff.clients)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, ff *fakeFactory, cfg ManagerConfig) *Manager {
	t.Helper()
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080/api"
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = time.Millisecond
	}

	m := NewManager(cfg, discardLogger())
	m.newClient = ff.new

	ctx, cancel := context.WithCancel(context.Background())
	if err := m.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()
		m.Stop(stopCtx)
		cancel()
	})
	return m
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnectRequiresToken(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(t, ff, ManagerConfig{})

	m.Connect()
	time.Sleep(20 * time.Millisecond)

	if n := ff.dials(); n != 0 {
		t.Errorf("dials = %d, want 0", n)
	}
	if s := m.State(); s != StateDisconnected {
		t.Errorf("state = %v, want disconnected", s)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(t, ff, ManagerConfig{})

	m.SetToken("tok")
	waitFor(t, func() bool { return m.State() == StateConnected }, "never connected")

	m.Connect()
	m.Connect()
	time.Sleep(20 * time.Millisecond)

	if n := ff.dials(); n != 1 {
		t.Errorf("dials = %d, want 1", n)
	}
}

func TestTokenPlacedInStreamURL(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(t, ff, ManagerConfig{BaseURL: "http://example.test/api"})

	m.SetToken("tok a+b")
	waitFor(t, func() bool { return m.State() == StateConnected }, "never connected")

	ff.mu.Lock()
	url := ff.urls[0]
	ff.mu.Unlock()

	if !strings.HasPrefix(url, "http://example.test/api/v1/events?token=") {
		t.Errorf("stream url = %q, want events endpoint with token query", url)
	}
	if strings.Contains(url, " ") {
		t.Errorf("stream url %q contains unescaped space", url)
	}
}

func TestFramesForwarded(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(t, ff, ManagerConfig{})

	m.SetToken("tok")
	waitFor(t, func() bool { return m.State() == StateConnected }, "never connected")

	ff.last().frames <- Frame{Data: []byte(`{"type":"node"}`)}

	select {
	case frame := <-m.Frames():
		if string(frame.Data) != `{"type":"node"}` {
			t.Errorf("frame data = %q", frame.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("frame never forwarded")
	}
}

func TestReconnectStopsAtAttemptCeiling(t *testing.T) {
	ff := &fakeFactory{failAll: true}
	m := newTestManager(t, ff, ManagerConfig{MaxReconnectAttempts: 3})

	m.SetToken("tok")

	// Initial dial plus one dial per scheduled attempt.
	waitFor(t, func() bool { return ff.dials() == 4 }, "reconnect attempts never ran")

	time.Sleep(50 * time.Millisecond)
	if n := ff.dials(); n != 4 {
		t.Errorf("dials = %d, want 4 (ceiling reached)", n)
	}
	if s := m.State(); s != StateDisconnected {
		t.Errorf("state = %v, want disconnected", s)
	}
}

func TestStreamErrorTriggersReconnect(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(t, ff, ManagerConfig{})

	m.SetToken("tok")
	waitFor(t, func() bool { return m.State() == StateConnected }, "never connected")

	ff.last().errors <- errors.New("stream reset")

	waitFor(t, func() bool { return ff.dials() == 2 && m.State() == StateConnected },
		"never reconnected after stream error")
}

func TestClearingTokenDisconnects(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(t, ff, ManagerConfig{})

	m.SetToken("tok")
	waitFor(t, func() bool { return m.State() == StateConnected }, "never connected")
	cli := ff.last()

	m.SetToken("")

	if s := m.State(); s != StateDisconnected {
		t.Errorf("state = %v, want disconnected", s)
	}
	if !cli.isClosed() {
		t.Error("stream client not closed on logout")
	}

	m.Connect()
	time.Sleep(20 * time.Millisecond)
	if n := ff.dials(); n != 1 {
		t.Errorf("dials = %d, want 1 (no reconnect without token)", n)
	}
}

func TestLogoutCancelsPendingReconnect(t *testing.T) {
	ff := &fakeFactory{failAll: true}
	m := newTestManager(t, ff, ManagerConfig{
		ReconnectBaseDelay:   50 * time.Millisecond,
		MaxReconnectAttempts: 5,
	})

	m.SetToken("tok")
	waitFor(t, func() bool { return ff.dials() == 1 }, "initial dial never ran")

	// Timer for the first reconnect is pending; logout must clear it.
	m.SetToken("")
	time.Sleep(150 * time.Millisecond)

	if n := ff.dials(); n != 1 {
		t.Errorf("dials = %d, want 1 (stale reconnect timer fired)", n)
	}
}

func TestOfflineSuppressesConnect(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(t, ff, ManagerConfig{})

	m.SetOnline(false)
	m.SetToken("tok")
	time.Sleep(20 * time.Millisecond)

	if n := ff.dials(); n != 0 {
		t.Errorf("dials = %d, want 0 while offline", n)
	}

	m.SetOnline(true)
	waitFor(t, func() bool { return m.State() == StateConnected }, "never connected after online")
}

func TestOfflineWhileConnectedDisconnects(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(t, ff, ManagerConfig{})

	m.SetToken("tok")
	waitFor(t, func() bool { return m.State() == StateConnected }, "never connected")
	cli := ff.last()

	m.SetOnline(false)

	if s := m.State(); s != StateDisconnected {
		t.Errorf("state = %v, want disconnected after going offline", s)
	}
	if !cli.isClosed() {
		t.Error("stream client not closed after going offline")
	}

	time.Sleep(30 * time.Millisecond)
	if n := ff.dials(); n != 1 {
		t.Errorf("dials = %d, want 1 (reconnect scheduled while offline)", n)
	}

	m.SetOnline(true)
	waitFor(t, func() bool { return ff.dials() == 2 && m.State() == StateConnected },
		"never reconnected after coming back online")
}

func TestReconnectDeferredUntilVisible(t *testing.T) {
	ff := &fakeFactory{failFirst: 1}
	m := newTestManager(t, ff, ManagerConfig{})

	m.SetVisible(false)
	m.SetToken("tok")

	waitFor(t, func() bool { return ff.dials() == 1 }, "initial dial never ran")
	time.Sleep(30 * time.Millisecond)
	if n := ff.dials(); n != 1 {
		t.Fatalf("dials = %d, want 1 (reconnect should wait for visibility)", n)
	}

	m.SetVisible(true)
	waitFor(t, func() bool { return m.State() == StateConnected }, "deferred reconnect never ran")
}

func TestNewTokenReplacesStream(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(t, ff, ManagerConfig{})

	m.SetToken("tok-1")
	waitFor(t, func() bool { return m.State() == StateConnected }, "never connected")
	first := ff.last()

	m.SetToken("tok-2")
	waitFor(t, func() bool { return ff.dials() == 2 && m.State() == StateConnected },
		"never reconnected with new token")

	if !first.isClosed() {
		t.Error("old stream not closed after credential change")
	}
}
