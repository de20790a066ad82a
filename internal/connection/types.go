package connection

import (
	"errors"
	"time"
)

// Connection errors.
var (
	// ErrNotConnected is returned when an operation requires an open stream.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyClosed is returned when connecting a closed client.
	ErrAlreadyClosed = errors.New("client already closed")

	// ErrBadStatus is returned when the events endpoint rejects the stream
	// request with a non-200 status.
	ErrBadStatus = errors.New("unexpected response status")
)

// Frame is one raw server-sent event as read off the wire.
type Frame struct {
	Event      string // event name, "" for unnamed events
	Data       []byte
	ReceivedAt time.Time
}

// ClientConfig configures a single event stream.
type ClientConfig struct {
	URL        string // full events URL, token included
	BufferSize int    // frame channel capacity
}

// State is the manager's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ManagerConfig configures the connection manager.
type ManagerConfig struct {
	BaseURL              string // REST base, events URL is derived from it
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
	FrameBufferSize      int
}
