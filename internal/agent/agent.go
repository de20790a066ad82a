// Package agent wires the event pipeline together: REST client, event
// stream, decoder, delivery queue, subscriber registry, and notification
// center, plus the cached application state the side-effect hooks keep
// fresh.
package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kubecloud/console-agent/internal/account"
	"github.com/kubecloud/console-agent/internal/api"
	"github.com/kubecloud/console-agent/internal/config"
	"github.com/kubecloud/console-agent/internal/connection"
	"github.com/kubecloud/console-agent/internal/decode"
	"github.com/kubecloud/console-agent/internal/model"
	"github.com/kubecloud/console-agent/internal/notify"
	"github.com/kubecloud/console-agent/internal/queue"
	"github.com/kubecloud/console-agent/internal/registry"
)

// Agent is the process-wide pipeline instance. Its lifetime is tied to the
// credential: SetToken("") tears the session state down, a fresh token
// brings it back.
type Agent struct {
	cfg    *config.AgentConfig
	logger *slog.Logger

	tokens    *tokenSource
	api       *api.Client
	manager   *connection.Manager
	decoder   *decode.Decoder
	queue     *queue.Queue
	registry  *registry.Registry
	center    *notify.Center
	presenter *notify.Presenter
	account   *account.Service

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	user     *model.User
	clusters []model.ClusterSummary
	nodes    []model.RentedNode
	balance  *model.Balance
}

// New builds an agent from config. Nothing runs until Start.
func New(cfg *config.AgentConfig, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Agent{
		cfg:    cfg,
		logger: logger,
		tokens: &tokenSource{},
	}

	a.center = notify.NewCenter(notify.CenterConfig{
		ToastDuration:      cfg.Notifications.ToastDuration,
		ErrorToastDuration: cfg.Notifications.ErrorToastDuration,
		PageSize:           cfg.Notifications.PageSize,
	}, nil, logger.With("component", "notify"))

	a.api = api.NewClient(cfg.API.BaseURL, a.tokens,
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithLogger(logger.With("component", "api")),
		api.WithReporter(a.center),
	)
	// The durable mirror goes through the same client.
	a.center.SetStore(a.api)

	a.manager = connection.NewManager(connection.ManagerConfig{
		BaseURL:              cfg.API.BaseURL,
		ReconnectBaseDelay:   cfg.Events.ReconnectBaseDelay,
		MaxReconnectAttempts: cfg.Events.MaxReconnectAttempts,
		FrameBufferSize:      cfg.Events.FrameBufferSize,
	}, logger.With("component", "connection"))

	a.decoder = decode.NewDecoder(logger.With("component", "decode"))
	a.registry = registry.New(logger.With("component", "registry"))
	a.presenter = notify.NewPresenter(a.center, logger.With("component", "notify"))
	a.queue = queue.New(cfg.Queue.Capacity, cfg.Queue.Pace, a.deliver, logger.With("component", "queue"))
	a.account = account.NewService(a.api, a.center, logger.With("component", "account"))

	a.registerHooks()

	return a
}

// Start launches the pipeline and connects if a credential can be resolved
// from config, environment, or the legacy token file.
func (a *Agent) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := a.queue.Start(a.ctx); err != nil {
		return err
	}
	if err := a.manager.Start(a.ctx); err != nil {
		return err
	}

	a.wg.Add(1)
	go a.decodeLoop()

	if token := resolveToken(a.cfg); token != "" {
		a.SetToken(token)
	} else {
		a.logger.Info("no credential configured, waiting for login")
	}

	a.logger.Info("agent started")
	return nil
}

// Stop shuts the pipeline down.
func (a *Agent) Stop(ctx context.Context) error {
	a.manager.Stop(ctx)
	a.queue.Stop(ctx)

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("shutdown timeout waiting for decode loop")
	}

	a.logger.Info("agent stopped")
	return nil
}

// SetToken installs a new credential. An empty token is a logout: the stream
// drops, toasts clear, and cached state empties.
func (a *Agent) SetToken(token string) {
	a.tokens.set(token)
	a.manager.SetToken(token)

	if token == "" {
		a.center.Reset()
		a.mu.Lock()
		a.user = nil
		a.clusters = nil
		a.nodes = nil
		a.balance = nil
		a.mu.Unlock()
		return
	}

	if a.ctx == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.refreshUser()
		a.refreshClusters()
		a.refreshNodes()
		a.refreshBalance()
	}()
}

// SetOnline forwards network availability to the connection manager.
func (a *Agent) SetOnline(online bool) { a.manager.SetOnline(online) }

// SetVisible forwards visibility to the connection manager.
func (a *Agent) SetVisible(visible bool) { a.manager.SetVisible(visible) }

// API returns the REST client.
func (a *Agent) API() *api.Client { return a.api }

// Center returns the notification center.
func (a *Agent) Center() *notify.Center { return a.center }

// Registry returns the correlation-id subscriber registry.
func (a *Agent) Registry() *registry.Registry { return a.registry }

// Account returns the account operation service.
func (a *Agent) Account() *account.Service { return a.account }

// ConnectionState returns the stream state.
func (a *Agent) ConnectionState() connection.State { return a.manager.State() }

// User returns the cached account, or nil before the first load.
func (a *Agent) User() *model.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// Clusters returns the cached deployment list.
func (a *Agent) Clusters() []model.ClusterSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.ClusterSummary(nil), a.clusters...)
}

// RentedNodes returns the cached reserved-node list.
func (a *Agent) RentedNodes() []model.RentedNode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.RentedNode(nil), a.nodes...)
}

// Balance returns the cached balance, or nil before the first load.
func (a *Agent) Balance() *model.Balance {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// decodeLoop feeds stream frames through the decoder into the queue.
func (a *Agent) decodeLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case frame, ok := <-a.manager.Frames():
			if !ok {
				return
			}
			env, ok := a.decoder.Decode(frame.Data)
			if !ok {
				continue
			}
			a.queue.Push(env)
		}
	}
}

// deliver runs on the queue's drain goroutine. Presentation finishes before
// correlated subscribers run, and both before the queue advances.
func (a *Agent) deliver(env model.Envelope) {
	a.presenter.Present(env)
	a.registry.Dispatch(env)
}

// registerHooks binds event kinds to the state they invalidate.
func (a *Agent) registerHooks() {
	a.presenter.OnKind(model.KindNode, func(model.Envelope) { a.refreshNodes() })
	a.presenter.OnKind(model.KindBilling, func(model.Envelope) { a.refreshBalance() })
	a.presenter.OnKind(model.KindUser, func(model.Envelope) { a.refreshUser() })
	a.presenter.OnKind(model.KindDeployment, func(model.Envelope) { a.refreshClusters() })
	a.presenter.OnKind(model.KindWorkflowUpdate, func(model.Envelope) { a.refreshClusters() })
}

func (a *Agent) refreshUser() {
	user, err := a.api.GetUser(a.ctx)
	if err != nil {
		a.sessionCheck(err)
		a.logger.Warn("user refresh failed", "error", err)
		return
	}
	a.mu.Lock()
	a.user = user
	a.mu.Unlock()
}

func (a *Agent) refreshClusters() {
	clusters, err := a.api.GetClusters(a.ctx)
	if err != nil {
		a.sessionCheck(err)
		a.logger.Warn("cluster refresh failed", "error", err)
		return
	}
	a.mu.Lock()
	a.clusters = clusters
	a.mu.Unlock()
}

func (a *Agent) refreshNodes() {
	nodes, err := a.api.GetRentedNodes(a.ctx)
	if err != nil {
		a.sessionCheck(err)
		a.logger.Warn("node refresh failed", "error", err)
		return
	}
	a.mu.Lock()
	a.nodes = nodes
	a.mu.Unlock()
}

func (a *Agent) refreshBalance() {
	balance, err := a.api.GetBalance(a.ctx)
	if err != nil {
		a.sessionCheck(err)
		a.logger.Warn("balance refresh failed", "error", err)
		return
	}
	a.mu.Lock()
	a.balance = balance
	a.mu.Unlock()
}

// sessionCheck logs the session out when the backend says the credential is
// gone for good.
func (a *Agent) sessionCheck(err error) {
	if api.IsSessionExpired(err) {
		a.logger.Warn("session expired, logging out")
		a.SetToken("")
	}
}
