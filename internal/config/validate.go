package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *AgentConfig) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.Events.MaxReconnectAttempts < 1 {
		return errors.New("events.max_reconnect_attempts must be >= 1")
	}
	if c.Events.ReconnectBaseDelay <= 0 {
		return errors.New("events.reconnect_base_delay must be > 0")
	}
	if c.Events.FrameBufferSize < 1 {
		return errors.New("events.frame_buffer_size must be >= 1")
	}

	if c.Queue.Capacity < 1 {
		return errors.New("queue.capacity must be >= 1")
	}
	if c.Queue.Pace <= 0 {
		return errors.New("queue.pace must be > 0")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}
	if c.Poller.InitialDelay < 0 {
		return errors.New("poller.initial_delay must be >= 0")
	}

	if c.Notifications.PageSize < 1 {
		return errors.New("notifications.page_size must be >= 1")
	}

	return nil
}

// Validate checks the devserver configuration.
func (c *DevServerConfig) Validate() error {
	if c.Listen == "" {
		return errors.New("listen is required")
	}
	// An empty database block means the in-memory store.
	if c.Database.Host != "" {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}
	if c.Workflow.RunAfter < 0 || c.Workflow.CompleteAfter < 0 {
		return errors.New("workflow delays must be >= 0")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
