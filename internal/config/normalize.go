package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeHTTPLookup()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("TASKQ_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeQueue() {
	seen := make(map[string]struct{}, len(c.Queue.Lanes))
	lanes := make([]string, 0, len(c.Queue.Lanes))
	for _, lane := range c.Queue.Lanes {
		lane = strings.TrimSpace(lane)
		if lane == "" {
			continue
		}
		if _, ok := seen[lane]; ok {
			continue
		}
		seen[lane] = struct{}{}
		lanes = append(lanes, lane)
	}
	if len(lanes) == 0 {
		lanes = []string{defaultMainLane, defaultSmallJobsLane}
	}
	c.Queue.Lanes = lanes

	c.Queue.DefaultLane = strings.TrimSpace(c.Queue.DefaultLane)
	if c.Queue.DefaultLane == "" {
		c.Queue.DefaultLane = lanes[0]
	}
	if c.Queue.BackoffMultiplier == 0 {
		c.Queue.BackoffMultiplier = defaultBackoffMultiplier
	}
	if c.Queue.CleanupIntervalMinutes <= 0 {
		c.Queue.CleanupIntervalMinutes = defaultCleanupIntervalMinutes
	}
	if c.Queue.ErrorRetryInterval <= 0 {
		c.Queue.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeHTTPLookup() {
	if c.HTTPLookup.TimeoutSeconds <= 0 {
		c.HTTPLookup.TimeoutSeconds = defaultHTTPLookupTimeout
	}
	c.HTTPLookup.UserAgent = strings.TrimSpace(c.HTTPLookup.UserAgent)
	if c.HTTPLookup.UserAgent == "" {
		c.HTTPLookup.UserAgent = defaultHTTPLookupUserAgent
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json", "auto":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}
