// Package queue paces delivery of decoded events to the presentation layer.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kubecloud/console-agent/internal/model"
)

// Dispatch delivers one envelope downstream. It runs on the drain goroutine;
// the queue does not advance until it returns.
type Dispatch func(model.Envelope)

// Queue is a bounded FIFO with paced dispatch. When full, the oldest pending
// envelope is evicted to make room. Lost envelopes are not reconstructed; the
// durable notification list is the recovery path.
type Queue struct {
	capacity int
	pace     time.Duration
	dispatch Dispatch
	logger   *slog.Logger

	mu    sync.Mutex
	items []model.Envelope
	drops int64

	wake chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a queue. A nil logger falls back to slog.Default().
func New(capacity int, pace time.Duration, dispatch Dispatch, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity < 1 {
		capacity = 1
	}

	return &Queue{
		capacity: capacity,
		pace:     pace,
		dispatch: dispatch,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the drain goroutine.
func (q *Queue) Start(ctx context.Context) error {
	q.ctx, q.cancel = context.WithCancel(ctx)

	q.wg.Add(1)
	go q.drain()
	return nil
}

// Stop halts draining. Pending envelopes are discarded.
func (q *Queue) Stop(ctx context.Context) error {
	if q.cancel != nil {
		q.cancel()
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("shutdown timeout waiting for queue drain")
	}
	return nil
}

// Push enqueues an envelope, evicting the oldest pending one when full.
func (q *Queue) Push(env model.Envelope) {
	q.mu.Lock()
	if len(q.items) == q.capacity {
		evicted := q.items[0]
		q.items = q.items[1:]
		q.drops++
		q.logger.Warn("queue full, evicting oldest event",
			"kind", evicted.Kind,
			"task_id", evicted.CorrelationID,
		)
	}
	q.items = append(q.items, env)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of pending envelopes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drops returns how many envelopes were evicted unprocessed.
func (q *Queue) Drops() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drops
}

// drain dispatches the head envelope, waits out the pacing delay, and
// repeats. The pacing delay applies after every dispatch, including when the
// queue has fallen empty in the meantime.
func (q *Queue) drain() {
	defer q.wg.Done()

	for {
		env, ok := q.pop()
		if !ok {
			select {
			case <-q.ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		q.dispatch(env)

		select {
		case <-q.ctx.Done():
			return
		case <-time.After(q.pace):
		}
	}
}

func (q *Queue) pop() (model.Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return model.Envelope{}, false
	}
	env := q.items[0]
	q.items = q.items[1:]
	return env, true
}
