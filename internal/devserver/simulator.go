package devserver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kubecloud/console-agent/internal/model"
)

// Simulator fakes backend workflows: each starts pending, moves to running
// after RunAfter, and reaches a terminal status after CompleteAfter. On
// completion a workflow_update event goes out to the owner.
type Simulator struct {
	runAfter      time.Duration
	completeAfter time.Duration
	hub           *Hub
	metrics       *Metrics
	logger        *slog.Logger

	mu        sync.Mutex
	workflows map[string]*simWorkflow
	timers    []*time.Timer
	stopped   bool
}

type simWorkflow struct {
	userID string
	kind   model.Kind
	status model.WorkflowStatus
	fail   bool
}

// NewSimulator creates a Simulator broadcasting completions through hub.
func NewSimulator(runAfter, completeAfter time.Duration, hub *Hub, metrics *Metrics, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		runAfter:      runAfter,
		completeAfter: completeAfter,
		hub:           hub,
		metrics:       metrics,
		logger:        logger,
		workflows:     make(map[string]*simWorkflow),
	}
}

// Start launches a simulated workflow and returns its task id. Failing
// workflows end failed instead of completed.
func (s *Simulator) Start(userID string, kind model.Kind, fail bool) string {
	id := uuid.NewString()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return id
	}
	s.workflows[id] = &simWorkflow{
		userID: userID,
		kind:   kind,
		status: model.WorkflowPending,
		fail:   fail,
	}
	s.timers = append(s.timers,
		time.AfterFunc(s.runAfter, func() { s.setStatus(id, model.WorkflowRunning) }),
		time.AfterFunc(s.completeAfter, func() { s.complete(id) }),
	)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.WorkflowsRun.Inc()
	}
	s.logger.Debug("workflow started", "task_id", id, "kind", kind, "fail", fail)
	return id
}

// Status returns the current status of a workflow.
func (s *Simulator) Status(id string) (model.WorkflowStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok {
		return "", false
	}
	return wf.status, true
}

// Stop cancels all pending transitions.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

func (s *Simulator) setStatus(id string, status model.WorkflowStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wf, ok := s.workflows[id]; ok && !wf.status.IsTerminal() {
		wf.status = status
	}
}

func (s *Simulator) complete(id string) {
	s.mu.Lock()
	wf, ok := s.workflows[id]
	if !ok || wf.status.IsTerminal() {
		s.mu.Unlock()
		return
	}

	severity := model.SeveritySuccess
	wf.status = model.WorkflowCompleted
	if wf.fail {
		wf.status = model.WorkflowFailed
		severity = model.SeverityError
	}
	userID := wf.userID
	status := wf.status
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Broadcast(userID, model.Envelope{
			Kind:          model.KindWorkflowUpdate,
			Severity:      severity,
			CorrelationID: id,
			Payload: map[string]string{
				"message": "Workflow " + string(status),
			},
			Timestamp: time.Now(),
		})
	}
}
