package model

import "time"

// Kind classifies an event or notification. The set below is closed on the
// backend, but unknown values are carried through as-is so newer servers do
// not break older agents.
type Kind string

const (
	KindDeployment     Kind = "deployment"
	KindBilling        Kind = "billing"
	KindUser           Kind = "user"
	KindNode           Kind = "node"
	KindConnected      Kind = "connected"
	KindWorkflowUpdate Kind = "workflow_update"
)

// Severity is the presentation level of an event or notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Status is the read state of a persistent notification.
type Status string

const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
)

// Envelope is a decoded push message. Immutable once decoded.
type Envelope struct {
	Kind          Kind              `json:"type"`
	Severity      Severity          `json:"severity"`
	Payload       map[string]string `json:"data"`
	CorrelationID string            `json:"task_id,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Subject returns the explicit payload subject, or "" if absent.
func (e Envelope) Subject() string {
	return e.Payload["subject"]
}

// Message returns the explicit payload message, or "" if absent.
func (e Envelope) Message() string {
	return e.Payload["message"]
}

// Notification is a presentation-layer record, derived from an Envelope or
// created locally by UI code.
type Notification struct {
	ID            string            `json:"id"`
	CorrelationID string            `json:"task_id,omitempty"`
	Kind          Kind              `json:"type"`
	Severity      Severity          `json:"severity"`
	Payload       map[string]string `json:"payload"`
	Status        Status            `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	ReadAt        *time.Time        `json:"read_at,omitempty"`

	// Local-only fields, never sent to or received from the backend.
	// Persistent notifications mirror the durable store and never
	// auto-dismiss; transient ones self-destruct after Duration.
	Persistent bool          `json:"-"`
	Duration   time.Duration `json:"-"`
}

// WorkflowStatus is the lifecycle state of a backend workflow.
type WorkflowStatus string

const (
	// WorkflowPending indicates the workflow has not started.
	WorkflowPending WorkflowStatus = "pending"

	// WorkflowRunning indicates the workflow is currently running.
	WorkflowRunning WorkflowStatus = "running"

	// WorkflowCompleted indicates the workflow finished successfully.
	WorkflowCompleted WorkflowStatus = "completed"

	// WorkflowFailed indicates the workflow failed.
	WorkflowFailed WorkflowStatus = "failed"
)

// IsTerminal reports whether polling should stop at this status. Detection
// is an exact match: any other value keeps a poller going.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed
}

// ClusterSummary is one entry of the deployment list.
type ClusterSummary struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	NodeCount int       `json:"node_count"`
	CreatedAt time.Time `json:"created_at"`
}

// RentedNode is one entry of the user's reserved-node list.
type RentedNode struct {
	NodeID     int64  `json:"node_id"`
	ContractID int64  `json:"contract_id"`
	Location   string `json:"location"`
	Online     bool   `json:"online"`
}

// Balance is the user's account balance snapshot.
type Balance struct {
	BalanceUSD float64 `json:"balance_usd"`
	DebtUSD    float64 `json:"debt_usd"`
}

// User is the authenticated account as returned by the backend.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}
