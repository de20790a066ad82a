// Package registry routes correlated events to interested subscribers.
package registry

import (
	"log/slog"
	"sync"

	"github.com/kubecloud/console-agent/internal/model"
)

// Callback receives every envelope carrying the subscribed correlation id.
type Callback func(model.Envelope)

// Registry is a correlation-id fanout table. Zero subscribers for an id is
// not an error; the envelope simply has no takers.
type Registry struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[string]map[int64]Callback
	nextID int64
}

// New creates a Registry. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		subs:   make(map[string]map[int64]Callback),
	}
}

// Subscribe registers fn for envelopes with the given correlation id. The
// returned function removes the subscription; calling it more than once is a
// no-op.
func (r *Registry) Subscribe(correlationID string, fn Callback) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID

	set, ok := r.subs[correlationID]
	if !ok {
		set = make(map[int64]Callback)
		r.subs[correlationID] = set
	}
	set[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.unsubscribe(correlationID, id)
		})
	}
}

func (r *Registry) unsubscribe(correlationID string, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subs[correlationID]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.subs, correlationID)
	}
}

// Dispatch synchronously invokes every callback subscribed to the envelope's
// correlation id. Envelopes without one are ignored.
func (r *Registry) Dispatch(env model.Envelope) {
	if env.CorrelationID == "" {
		return
	}

	r.mu.Lock()
	set := r.subs[env.CorrelationID]
	fns := make([]Callback, 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	if len(fns) == 0 {
		return
	}

	r.logger.Debug("dispatching correlated event",
		"task_id", env.CorrelationID,
		"subscribers", len(fns),
	)
	for _, fn := range fns {
		fn(env)
	}
}

// Len returns the number of correlation ids with at least one subscriber.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
