package notify

import (
	"log/slog"
	"sync"

	"github.com/kubecloud/console-agent/internal/model"
)

// Notifier is the toast sink the Presenter writes to, implemented by Center.
type Notifier interface {
	Notify(n model.Notification) string
}

// Hook runs after an envelope of its kind is presented, so callers can
// refresh state the event invalidated.
type Hook func(env model.Envelope)

// Presenter turns decoded envelopes into user-visible notifications.
type Presenter struct {
	notifier Notifier
	logger   *slog.Logger

	mu          sync.Mutex
	hooks       map[model.Kind][]Hook
	onConnected []func()
}

// NewPresenter creates a Presenter writing to the given sink.
func NewPresenter(notifier Notifier, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{
		notifier: notifier,
		logger:   logger,
		hooks:    make(map[model.Kind][]Hook),
	}
}

// OnKind registers a side-effect hook for one event kind. Hooks run for
// every non-error envelope of that kind. The workflow_update hook runs for
// error envelopes too: a finished workflow invalidates cached state whether
// it succeeded or not.
func (p *Presenter) OnKind(kind model.Kind, hook Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks[kind] = append(p.hooks[kind], hook)
}

// OnConnected registers a callback for stream connectivity events.
func (p *Presenter) OnConnected(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onConnected = append(p.onConnected, fn)
}

// Present shows one envelope. Connectivity events only feed the connected
// callbacks and never become notifications.
func (p *Presenter) Present(env model.Envelope) {
	if env.Kind == model.KindConnected {
		p.logger.Debug("notification stream confirmed")
		p.mu.Lock()
		fns := append([]func(){}, p.onConnected...)
		p.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
		return
	}

	subject := env.Subject()
	if subject == "" {
		subject = defaultSubject(env.Kind)
	}
	message := env.Message()
	if message == "" {
		message = defaultMessage(env.Kind)
	}

	p.notifier.Notify(model.Notification{
		Kind:          env.Kind,
		Severity:      env.Severity,
		CorrelationID: env.CorrelationID,
		Payload: map[string]string{
			"subject": subject,
			"message": message,
		},
	})

	p.runHooks(env)
}

func (p *Presenter) runHooks(env model.Envelope) {
	if env.Severity == model.SeverityError && env.Kind != model.KindWorkflowUpdate {
		return
	}

	p.mu.Lock()
	hooks := append([]Hook{}, p.hooks[env.Kind]...)
	p.mu.Unlock()

	for _, hook := range hooks {
		hook(env)
	}
}
