package jobs

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taskq/internal/logging"
	"taskq/internal/task"
)

// maxBodyBytes caps how much of a response is read to count its size.
const maxBodyBytes = 4 << 20

// HTTPLookup requests a URL and records the response status.
type HTTPLookup struct {
	task.Base

	URL    string `json:"url" validate:"required,url"`
	Method string `json:"method,omitempty" validate:"omitempty,oneof=GET HEAD"`
	Label  string `json:"label,omitempty" validate:"omitempty,max=200"`

	LastStatus int       `json:"last_status,omitempty"`
	LastBytes  int64     `json:"last_bytes,omitempty"`
	CheckedAt  time.Time `json:"checked_at,omitzero"`

	deps Deps
}

func (h *HTTPLookup) Kind() string { return KindHTTPLookup }

func (h *HTTPLookup) Description() string {
	if label := strings.TrimSpace(h.Label); label != "" {
		return "Lookup " + label
	}
	return "Lookup " + h.URL
}

func (h *HTTPLookup) Run(rc *task.Context) (bool, error) {
	method := strings.ToUpper(strings.TrimSpace(h.Method))
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(rc, method, h.URL, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	if h.deps.UserAgent != "" {
		req.Header.Set("User-Agent", h.deps.UserAgent)
	}
	client := h.deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if rc.Err() != nil {
			return false, rc.Err()
		}
		rc.Logger.Warn("lookup request failed; will retry",
			logging.String("url", h.URL),
			logging.Duration("latency", latency),
			logging.Error(err),
			logging.String(logging.FieldEventType, "lookup_transport_error"),
			logging.String(logging.FieldErrorHint, "check network connectivity to the target host"),
		)
		return false, nil
	}
	defer resp.Body.Close()
	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if rc.Err() != nil {
			return false, rc.Err()
		}
		rc.Logger.Warn("lookup response body read failed; will retry",
			logging.String("url", h.URL),
			logging.Int("status", resp.StatusCode),
			logging.Int64("bytes", n),
			logging.Error(err),
			logging.String(logging.FieldEventType, "lookup_body_error"),
			logging.String(logging.FieldErrorHint, "the connection dropped mid-response"),
		)
		return false, nil
	}

	h.LastStatus = resp.StatusCode
	h.LastBytes = n
	h.CheckedAt = time.Now().UTC()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		rc.Logger.Info("lookup succeeded",
			logging.String("url", h.URL),
			logging.Int("status", resp.StatusCode),
			logging.Int64("bytes", n),
			logging.Duration("latency", latency),
		)
		return true, nil
	case retryableStatus(resp.StatusCode):
		rc.Logger.Warn("lookup returned a transient status; will retry",
			logging.String("url", h.URL),
			logging.Int("status", resp.StatusCode),
			logging.String(logging.FieldEventType, "lookup_transient_status"),
			logging.String(logging.FieldErrorHint, "the remote service may be overloaded"),
		)
		return false, nil
	default:
		return false, fmt.Errorf("lookup %s returned %d (latency=%v)", h.URL, resp.StatusCode, latency)
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}
