package devserver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kubecloud/console-agent/internal/model"
)

// Hub fans events out to the connected stream clients of each user and
// persists everything except connectivity chatter.
type Hub struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics

	mu   sync.Mutex
	subs map[string]map[*hubClient]struct{}
}

type hubClient struct {
	ch chan model.Envelope
}

// NewHub creates a Hub writing durable copies to store.
func NewHub(store Store, metrics *Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:   store,
		logger:  logger,
		metrics: metrics,
		subs:    make(map[string]map[*hubClient]struct{}),
	}
}

// Subscribe attaches a stream client for a user. The returned cancel detaches
// it; the channel is never closed by the hub.
func (h *Hub) Subscribe(userID string) (<-chan model.Envelope, func()) {
	client := &hubClient{ch: make(chan model.Envelope, 32)}

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*hubClient]struct{})
		h.subs[userID] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.StreamClients.Inc()
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[userID]; ok {
				delete(set, client)
				if len(set) == 0 {
					delete(h.subs, userID)
				}
			}
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.StreamClients.Dec()
			}
		})
	}
	return client.ch, cancel
}

// Broadcast delivers an envelope to every connected client of the user and
// persists it. Connectivity events are transient and skip the store.
func (h *Hub) Broadcast(userID string, env model.Envelope) {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now()
	}

	if env.Kind != model.KindConnected && h.store != nil {
		n := model.Notification{
			ID:            uuid.NewString(),
			CorrelationID: env.CorrelationID,
			Kind:          env.Kind,
			Severity:      env.Severity,
			Payload:       env.Payload,
			Status:        model.StatusUnread,
			CreatedAt:     env.Timestamp,
		}
		if err := h.store.Insert(context.Background(), userID, n); err != nil {
			h.logger.Warn("persist notification failed", "error", err)
		}
	}

	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.subs[userID]))
	for c := range h.subs[userID] {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case c.ch <- env:
			if h.metrics != nil {
				h.metrics.EventsSent.Inc()
			}
		default:
			h.logger.Warn("stream client too slow, dropping event", "user", userID)
		}
	}
}

// Clients returns the number of connected stream clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}
