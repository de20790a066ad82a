// Package devserver is the local development backend for the console agent:
// the event stream, workflow simulation, a durable notification store, and
// canned account data, behind the same REST surface as production.
package devserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kubecloud/console-agent/internal/config"
)

// Server is the devserver HTTP process.
type Server struct {
	cfg     config.DevServerConfig
	logger  *slog.Logger
	store   Store
	hub     *Hub
	sim     *Simulator
	metrics *Metrics
	engine  *gin.Engine
	httpSrv *http.Server
}

// New wires the devserver. The store may be a MemoryStore or PostgresStore.
func New(cfg config.DevServerConfig, store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	metrics, registry := NewMetrics()
	hub := NewHub(store, metrics, logger.With("component", "hub"))
	sim := NewSimulator(cfg.Workflow.RunAfter, cfg.Workflow.CompleteAfter,
		hub, metrics, logger.With("component", "simulator"))

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		hub:     hub,
		sim:     sim,
		metrics: metrics,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), metrics.middleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := engine.Group("/v1", s.auth())
	{
		v1.GET("/events", s.handleEvents)
		v1.GET("/workflow/:id", s.handleWorkflowStatus)

		v1.GET("/user/", s.handleUser)
		v1.GET("/user/balance", s.handleBalance)
		v1.GET("/user/nodes", s.handleNodes)
		v1.GET("/deployments", s.handleDeployments)

		v1.POST("/user/register", s.handleRegister)
		v1.POST("/user/register/verify", s.handleVerify)
		v1.POST("/user/nodes/:id", s.handleReserveNode)
		v1.POST("/user/nodes/unreserve/:id", s.handleUnreserveNode)
		v1.POST("/user/balance/charge", s.handleChargeBalance)
		v1.POST("/user/redeem/:code", s.handleRedeemVoucher)

		v1.GET("/notifications", s.handleListNotifications)
		v1.GET("/notifications/unread", s.handleListUnread)
		v1.PATCH("/notifications/read-all", s.handleMarkAllRead)
		v1.PATCH("/notifications/:id/read", s.handleMarkRead)
		v1.PATCH("/notifications/:id/unread", s.handleMarkUnread)
		v1.DELETE("/notifications/:id", s.handleDeleteNotification)
		v1.DELETE("/notifications", s.handleDeleteAll)

		v1.POST("/dev/events", s.handleInjectEvent)
	}

	s.engine = engine
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.engine,
	}

	go func() {
		s.logger.Info("devserver listening", "addr", s.cfg.Listen)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("devserver failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.sim.Stop()
	if s.httpSrv == nil {
		return nil
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("devserver stopped")
	return nil
}

// auth resolves the caller from the bearer token or the token query
// parameter. Any non-empty token is accepted in development; the token
// doubles as the user id.
func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			const prefix = "Bearer "
			if h := c.GetHeader("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
				token = h[len(prefix):]
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		c.Set("user", token)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString("user")
}
