package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if !slices.Contains(c.Queue.Lanes, c.Queue.DefaultLane) {
		return fmt.Errorf("queue.default_lane %q is not listed in queue.lanes", c.Queue.DefaultLane)
	}
	if c.Queue.RetryLimit < 0 || c.Queue.RetryLimit > maxRetryLimit {
		return fmt.Errorf("queue.retry_limit must be between 0 and %d", maxRetryLimit)
	}
	if c.Queue.BackoffBaseSeconds < 0 {
		return errors.New("queue.backoff_base_seconds must be zero or positive")
	}
	if c.Queue.BackoffMaxSeconds < c.Queue.BackoffBaseSeconds {
		return errors.New("queue.backoff_max_seconds must be at least queue.backoff_base_seconds")
	}
	if c.Queue.BackoffMultiplier < 1 {
		return errors.New("queue.backoff_multiplier must be at least 1")
	}
	if c.Queue.RetentionDays < 1 {
		return errors.New("queue.retention_days must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic %q must be an http(s) URL", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
}
