package workflow

import "taskq/internal/config"

// ConfigOptions translates the [queue] settings into manager options.
func ConfigOptions(cfg *config.Config) []ManagerOption {
	if cfg == nil {
		return nil
	}
	return []ManagerOption{
		WithLanes(cfg.Queue.Lanes...),
		WithDefaultLane(cfg.Queue.DefaultLane),
		WithBackoff(BackoffFromConfig(cfg)),
		WithErrorRetryDelay(cfg.ErrorRetryDelay()),
		WithRetention(cfg.RetentionPeriod()),
	}
}
