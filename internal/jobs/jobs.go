package jobs

import (
	"net/http"
	"strings"
	"time"

	"taskq/internal/config"
	"taskq/internal/task"
)

// Kind names for the built-in tasks.
const (
	KindHTTPLookup = "http_lookup"
	KindSleep      = "sleep"
	KindEcho       = "echo"
)

// Deps carries the collaborators built-in tasks need at run time. They are
// not persisted with the task.
type Deps struct {
	HTTPClient *http.Client
	UserAgent  string
}

// DepsFromConfig builds Deps from the [http_lookup] settings.
func DepsFromConfig(cfg *config.Config) Deps {
	deps := Deps{HTTPClient: &http.Client{Timeout: 30 * time.Second}, UserAgent: "taskq"}
	if cfg == nil {
		return deps
	}
	if cfg.HTTPLookup.TimeoutSeconds > 0 {
		deps.HTTPClient.Timeout = time.Duration(cfg.HTTPLookup.TimeoutSeconds) * time.Second
	}
	if ua := strings.TrimSpace(cfg.HTTPLookup.UserAgent); ua != "" {
		deps.UserAgent = ua
	}
	return deps
}

// Register adds the built-in kinds to reg.
func Register(reg *task.Registry, deps Deps) error {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	factories := []struct {
		kind    string
		version int
		factory task.Factory
	}{
		{KindHTTPLookup, 1, func() task.Task { return &HTTPLookup{deps: deps} }},
		{KindSleep, 1, func() task.Task { return &Sleep{} }},
		{KindEcho, 1, func() task.Task { return &Echo{} }},
	}
	for _, f := range factories {
		if err := reg.Register(f.kind, f.version, f.factory); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in kinds.
func NewRegistry(deps Deps) (*task.Registry, error) {
	reg := task.NewRegistry()
	if err := Register(reg, deps); err != nil {
		return nil, err
	}
	return reg, nil
}
