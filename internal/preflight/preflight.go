package preflight

import (
	"context"

	"taskq/internal/config"
)

// Result reports the outcome of a single preflight check. Optional results
// do not block daemon start-up when they fail.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional,omitempty"`
	Detail   string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDatabaseFile("Queue database", cfg.QueueDBPath()),
	}

	if cfg.Paths.APIBind != "" {
		results = append(results, CheckBindAddress(ctx, "HTTP API bind", cfg.Paths.APIBind))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
