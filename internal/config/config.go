package config

import "time"

// AgentConfig is the root configuration for a console agent instance.
type AgentConfig struct {
	API           APIConfig           `yaml:"api"`
	Events        EventsConfig        `yaml:"events"`
	Queue         QueueConfig         `yaml:"queue"`
	Poller        PollerConfig        `yaml:"poller"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// APIConfig holds KubeCloud backend API settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Token      string        `yaml:"token"`      // Bearer token; ${KUBECLOUD_TOKEN} is expanded
	TokenFile  string        `yaml:"token_file"` // Legacy fallback when token is empty
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// EventsConfig holds push-connection manager settings.
type EventsConfig struct {
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	FrameBufferSize      int           `yaml:"frame_buffer_size"`
}

// QueueConfig holds delivery queue settings.
type QueueConfig struct {
	Capacity int           `yaml:"capacity"`
	Pace     time.Duration `yaml:"pace"`
}

// PollerConfig holds default workflow poll timings. Individual operations
// override these (registration waits longer before the first check).
type PollerConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	Interval     time.Duration `yaml:"interval"`
}

// NotificationsConfig holds presentation settings.
type NotificationsConfig struct {
	ToastDuration      time.Duration `yaml:"toast_duration"`
	ErrorToastDuration time.Duration `yaml:"error_toast_duration"`
	PageSize           int           `yaml:"page_size"`
}

// DevServerConfig is the root configuration for the development backend.
type DevServerConfig struct {
	Listen   string         `yaml:"listen"`
	Database DBConfig       `yaml:"database"`
	Workflow WorkflowConfig `yaml:"workflow"`
}

// DBConfig holds the notification store database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WorkflowConfig holds workflow simulation timings for the devserver.
type WorkflowConfig struct {
	RunAfter      time.Duration `yaml:"run_after"`      // pending -> running
	CompleteAfter time.Duration `yaml:"complete_after"` // running -> terminal
}
