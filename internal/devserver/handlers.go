package devserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kubecloud/console-agent/internal/model"
)

const streamHeartbeat = 15 * time.Second

// handleEvents serves the server-sent event stream. The first event is
// always a connected confirmation; afterwards the client gets everything the
// hub broadcasts for its user.
func (s *Server) handleEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	events, cancel := s.hub.Subscribe(userID(c))
	defer cancel()

	writeEvent(c, model.Envelope{
		Kind:     model.KindConnected,
		Severity: model.SeverityInfo,
		Payload: map[string]string{
			"message": "Connected to notification service",
		},
		Timestamp: time.Now(),
	})
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case env := <-events:
			writeEvent(c, env)
			flusher.Flush()
		case <-heartbeat.C:
			c.Writer.Write([]byte(": ping\n\n"))
			flusher.Flush()
		}
	}
}

func writeEvent(c *gin.Context, env model.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
}

func (s *Server) handleWorkflowStatus(c *gin.Context) {
	status, ok := s.sim.Status(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

// Canned account fixtures. The devserver serves one synthetic account per
// token.

func (s *Server) handleUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": model.User{
		ID:       1,
		Email:    userID(c) + "@dev.kubecloud.local",
		Name:     "Dev User",
		Verified: true,
	}})
}

func (s *Server) handleBalance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": model.Balance{
		BalanceUSD: 42.50,
		DebtUSD:    0,
	}})
}

func (s *Server) handleNodes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": []model.RentedNode{
		{NodeID: 101, ContractID: 9001, Location: "fsn1", Online: true},
		{NodeID: 102, ContractID: 9002, Location: "hel1", Online: false},
	}})
}

func (s *Server) handleDeployments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": []model.ClusterSummary{
		{Name: "web", Status: "running", NodeCount: 2, CreatedAt: time.Now().Add(-48 * time.Hour)},
		{Name: "batch", Status: "pending", NodeCount: 1, CreatedAt: time.Now().Add(-time.Hour)},
	}})
}

// Workflow-backed operations. Each starts a simulated workflow; adding
// ?fail=true makes it end failed, which is how the failure paths get
// exercised during development.

func (s *Server) startWorkflow(c *gin.Context, kind model.Kind) {
	id := s.sim.Start(userID(c), kind, c.Query("fail") == "true")
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"task_id": id}})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	s.startWorkflow(c, model.KindUser)
}

func (s *Server) handleVerify(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	s.startWorkflow(c, model.KindUser)
}

func (s *Server) handleReserveNode(c *gin.Context) {
	if _, err := strconv.ParseInt(c.Param("id"), 10, 64); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid node id"})
		return
	}
	s.startWorkflow(c, model.KindNode)
}

func (s *Server) handleUnreserveNode(c *gin.Context) {
	if _, err := strconv.ParseInt(c.Param("id"), 10, 64); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid node id"})
		return
	}
	s.startWorkflow(c, model.KindNode)
}

func (s *Server) handleChargeBalance(c *gin.Context) {
	var req struct {
		AmountUSD float64 `json:"amount_usd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.AmountUSD <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount_usd must be positive"})
		return
	}
	s.startWorkflow(c, model.KindBilling)
}

func (s *Server) handleRedeemVoucher(c *gin.Context) {
	if c.Param("code") == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "voucher code is required"})
		return
	}
	s.startWorkflow(c, model.KindBilling)
}

// Notification store endpoints.

func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func (s *Server) listNotifications(c *gin.Context, unreadOnly bool) {
	limit, offset := pageParams(c)
	items, total, err := s.store.List(c.Request.Context(), userID(c), limit, offset, unreadOnly)
	if err != nil {
		s.logger.Error("list notifications failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	if items == nil {
		items = []model.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"notifications": items,
		"limit":         limit,
		"offset":        offset,
		"count":         total,
	}})
}

func (s *Server) handleListNotifications(c *gin.Context) {
	s.listNotifications(c, false)
}

func (s *Server) handleListUnread(c *gin.Context) {
	s.listNotifications(c, true)
}

func (s *Server) setNotificationStatus(c *gin.Context, status model.Status) {
	err := s.store.SetStatus(c.Request.Context(), userID(c), c.Param("id"), status)
	if err == ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if err != nil {
		s.logger.Error("update notification failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": c.Param("id"), "status": status}})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	s.setNotificationStatus(c, model.StatusRead)
}

func (s *Server) handleMarkUnread(c *gin.Context) {
	s.setNotificationStatus(c, model.StatusUnread)
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	if err := s.store.MarkAllRead(c.Request.Context(), userID(c)); err != nil {
		s.logger.Error("mark all read failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "read"}})
}

func (s *Server) handleDeleteNotification(c *gin.Context) {
	err := s.store.Delete(c.Request.Context(), userID(c), c.Param("id"))
	if err == ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if err != nil {
		s.logger.Error("delete notification failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": c.Param("id")}})
}

func (s *Server) handleDeleteAll(c *gin.Context) {
	if err := s.store.DeleteAll(c.Request.Context(), userID(c)); err != nil {
		s.logger.Error("delete notifications failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": "all"}})
}

// handleInjectEvent pushes an arbitrary event to the caller's stream, for
// exercising the agent pipeline by hand.
func (s *Server) handleInjectEvent(c *gin.Context) {
	var env model.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}
	if env.Kind == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type is required"})
		return
	}
	if env.Severity == "" {
		env.Severity = model.SeverityInfo
	}
	s.hub.Broadcast(userID(c), env)
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"status": "sent"}})
}
