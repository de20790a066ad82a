package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kubecloud/console-agent/internal/model"
)

type recorder struct {
	mu    sync.Mutex
	seen  []string
	times []time.Time
}

func (r *recorder) dispatch(env model.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, env.CorrelationID)
	r.times = append(r.times, time.Now())
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func startQueue(t *testing.T, capacity int, pace time.Duration, dispatch Dispatch) *Queue {
	t.Helper()
	q := New(capacity, pace, dispatch, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	if err := q.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()
		q.Stop(stopCtx)
		cancel()
	})
	return q
}

func env(id string) model.Envelope {
	return model.Envelope{Kind: model.KindNode, CorrelationID: id}
}

func waitForLen(t *testing.T, r *recorder, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(r.snapshot()) >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("dispatched %d events, want %d", len(r.snapshot()), n)
}

func TestDispatchPreservesOrder(t *testing.T) {
	r := &recorder{}
	q := startQueue(t, 10, time.Millisecond, r.dispatch)

	for i := 0; i < 5; i++ {
		q.Push(env(fmt.Sprintf("e%d", i)))
	}

	waitForLen(t, r, 5)
	got := r.snapshot()
	for i, id := range []string{"e0", "e1", "e2", "e3", "e4"} {
		if got[i] != id {
			t.Fatalf("dispatch order = %v", got)
		}
	}
}

func TestDispatchIsPaced(t *testing.T) {
	r := &recorder{}
	pace := 40 * time.Millisecond
	q := startQueue(t, 10, pace, r.dispatch)

	q.Push(env("a"))
	q.Push(env("b"))
	q.Push(env("c"))

	waitForLen(t, r, 3)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i < len(r.times); i++ {
		gap := r.times[i].Sub(r.times[i-1])
		if gap < pace-5*time.Millisecond {
			t.Errorf("gap %d = %v, want >= %v", i, gap, pace)
		}
	}
}

func TestFullQueueEvictsOldest(t *testing.T) {
	// A slow first dispatch keeps the drain busy while pushes overflow.
	block := make(chan struct{})
	r := &recorder{}
	first := true
	var mu sync.Mutex
	dispatch := func(e model.Envelope) {
		mu.Lock()
		wasFirst := first
		first = false
		mu.Unlock()
		if wasFirst {
			<-block
		}
		r.dispatch(e)
	}

	q := startQueue(t, 3, time.Millisecond, dispatch)

	q.Push(env("head"))
	// Wait for the drain to pick "head" up so the buffer is empty.
	deadline := time.Now().Add(time.Second)
	for q.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	for i := 0; i < 5; i++ {
		q.Push(env(fmt.Sprintf("e%d", i)))
	}
	if n := q.Len(); n != 3 {
		t.Errorf("Len = %d, want capacity 3", n)
	}
	if n := q.Drops(); n != 2 {
		t.Errorf("Drops = %d, want 2", n)
	}

	close(block)
	waitForLen(t, r, 4)

	got := r.snapshot()
	want := []string{"head", "e2", "e3", "e4"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatched = %v, want %v", got, want)
		}
	}
}

func TestStopDiscardsPending(t *testing.T) {
	r := &recorder{}
	q := startQueue(t, 10, 500*time.Millisecond, r.dispatch)

	q.Push(env("a"))
	q.Push(env("b"))
	waitForLen(t, r, 1)

	stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	if err := q.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := r.snapshot(); len(got) != 1 {
		t.Errorf("dispatched after stop = %v, want just [a]", got)
	}
}
