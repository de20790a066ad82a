// Package workflow polls backend workflows until they reach a terminal
// status.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kubecloud/console-agent/internal/model"
)

// ErrCancelled is returned from Wait when the poll was cancelled. It marks a
// deliberate stop, not a workflow failure.
var ErrCancelled = errors.New("workflow poll cancelled")

// StatusSource fetches the current status of a workflow.
type StatusSource interface {
	GetWorkflowStatus(ctx context.Context, workflowID string) (model.WorkflowStatus, error)
}

// Options sets the poll timings. Zero values fall back to the defaults used
// across the product: 6s before the first check, 1s between checks.
type Options struct {
	InitialDelay time.Duration
	Interval     time.Duration
	Logger       *slog.Logger
}

// Handle tracks one running poll.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	cancelled bool
	status    model.WorkflowStatus
	err       error
}

// Poll starts polling the workflow in the background. The first check runs
// after InitialDelay, then every Interval until the status is exactly
// completed or failed. A transport error ends the poll with that error.
func Poll(ctx context.Context, src StatusSource, workflowID string, opts Options) *Handle {
	if opts.InitialDelay == 0 {
		opts.InitialDelay = 6 * time.Second
	}
	if opts.Interval == 0 {
		opts.Interval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pollCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go h.run(pollCtx, src, workflowID, opts, logger)
	return h
}

// Cancel stops the poll. The pending timer is released before Cancel
// returns; Wait then reports ErrCancelled.
func (h *Handle) Cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
	h.cancel()
}

// Done is closed when the poll has finished for any reason.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the poll finishes or ctx expires. On success it returns
// the terminal status.
func (h *Handle) Wait(ctx context.Context) (model.WorkflowStatus, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-h.done:
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.err
}

func (h *Handle) finish(status model.WorkflowStatus, err error) {
	h.mu.Lock()
	h.status = status
	h.err = err
	h.mu.Unlock()
	h.cancel()
	close(h.done)
}

func (h *Handle) run(ctx context.Context, src StatusSource, workflowID string, opts Options, logger *slog.Logger) {
	timer := time.NewTimer(opts.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.finish("", h.stopCause(ctx))
			return
		case <-timer.C:
		}

		status, err := src.GetWorkflowStatus(ctx, workflowID)
		if err != nil {
			// A cancel can surface as a request error first.
			if ctx.Err() != nil {
				h.finish("", h.stopCause(ctx))
				return
			}
			logger.Warn("workflow status check failed",
				"workflow_id", workflowID,
				"error", err,
			)
			h.finish("", fmt.Errorf("check workflow %s: %w", workflowID, err))
			return
		}

		if status.IsTerminal() {
			logger.Debug("workflow reached terminal status",
				"workflow_id", workflowID,
				"status", status,
			)
			h.finish(status, nil)
			return
		}

		timer.Reset(opts.Interval)
	}
}

// stopCause distinguishes a deliberate Cancel from a dying parent context.
func (h *Handle) stopCause(ctx context.Context) error {
	h.mu.Lock()
	cancelled := h.cancelled
	h.mu.Unlock()
	if cancelled {
		return ErrCancelled
	}
	return ctx.Err()
}
