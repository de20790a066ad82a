package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL              = "http://localhost:8080/api"
	DefaultAPITimeout           = 10 * time.Second
	DefaultMaxRetries           = 3
	DefaultReconnectBaseDelay   = 2 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultFrameBufferSize      = 100
	DefaultQueueCapacity        = 10
	DefaultQueuePace            = 2 * time.Second
	DefaultPollInitialDelay     = 6 * time.Second
	DefaultPollInterval         = 1 * time.Second
	DefaultToastDuration        = 5 * time.Second
	DefaultErrorToastDuration   = 8 * time.Second
	DefaultNotificationPageSize = 50
	DefaultListen               = ":8080"
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultWorkflowRunAfter     = 1 * time.Second
	DefaultWorkflowComplete     = 5 * time.Second
)

func (c *AgentConfig) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	if c.Events.ReconnectBaseDelay == 0 {
		c.Events.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Events.MaxReconnectAttempts == 0 {
		c.Events.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Events.FrameBufferSize == 0 {
		c.Events.FrameBufferSize = DefaultFrameBufferSize
	}

	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = DefaultQueueCapacity
	}
	if c.Queue.Pace == 0 {
		c.Queue.Pace = DefaultQueuePace
	}

	if c.Poller.InitialDelay == 0 {
		c.Poller.InitialDelay = DefaultPollInitialDelay
	}
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}

	if c.Notifications.ToastDuration == 0 {
		c.Notifications.ToastDuration = DefaultToastDuration
	}
	if c.Notifications.ErrorToastDuration == 0 {
		c.Notifications.ErrorToastDuration = DefaultErrorToastDuration
	}
	if c.Notifications.PageSize == 0 {
		c.Notifications.PageSize = DefaultNotificationPageSize
	}
}

func (c *DevServerConfig) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Workflow.RunAfter == 0 {
		c.Workflow.RunAfter = DefaultWorkflowRunAfter
	}
	if c.Workflow.CompleteAfter == 0 {
		c.Workflow.CompleteAfter = DefaultWorkflowComplete
	}
	applyDBDefaults(&c.Database)
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
