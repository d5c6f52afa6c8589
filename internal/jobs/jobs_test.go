package jobs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskq/internal/jobs"
	"taskq/internal/task"
	"taskq/internal/testsupport"
)

func runTask(t *testing.T, tk task.Task, attempt int) (bool, error) {
	t.Helper()
	rc, done := task.NewContext(context.Background(), tk, task.RunInfo{TaskID: 1, Lane: "main", RunID: "test", Attempt: attempt}, nil, nil)
	defer done()
	return tk.Run(rc)
}

func decodeLookup(t *testing.T, reg *task.Registry, url string) *jobs.HTTPLookup {
	t.Helper()
	payload, err := reg.Encode(&jobs.HTTPLookup{URL: url})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := reg.Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	lookup, ok := decoded.(*jobs.HTTPLookup)
	if !ok {
		t.Fatalf("expected *jobs.HTTPLookup, got %T", decoded)
	}
	return lookup
}

func TestHTTPLookupOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantOK  bool
		wantErr bool
	}{
		{"ok", http.StatusOK, true, false},
		{"no content", http.StatusNoContent, true, false},
		{"rate limited", http.StatusTooManyRequests, false, false},
		{"server error", http.StatusBadGateway, false, false},
		{"not found", http.StatusNotFound, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if ua := r.Header.Get("User-Agent"); ua != "taskq-test/1" {
					t.Errorf("unexpected user agent %q", ua)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))
			t.Cleanup(server.Close)

			reg, err := jobs.NewRegistry(jobs.Deps{HTTPClient: server.Client(), UserAgent: "taskq-test/1"})
			if err != nil {
				t.Fatalf("NewRegistry failed: %v", err)
			}
			lookup := decodeLookup(t, reg, server.URL+"/isbn/0441013597")

			ok, runErr := runTask(t, lookup, 1)
			if ok != tt.wantOK || (runErr != nil) != tt.wantErr {
				t.Fatalf("Run = %v, %v; want ok=%v err=%v", ok, runErr, tt.wantOK, tt.wantErr)
			}
			if lookup.LastStatus != tt.status {
				t.Fatalf("LastStatus = %d, want %d", lookup.LastStatus, tt.status)
			}

			payload, err := reg.Encode(lookup)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if !strings.Contains(string(payload), `"last_status"`) {
				t.Fatalf("expected response status persisted in payload: %s", payload)
			}
		})
	}
}

func TestHTTPLookupTransportErrorRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	reg, err := jobs.NewRegistry(jobs.Deps{HTTPClient: &http.Client{Timeout: time.Second}})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	ok, runErr := runTask(t, decodeLookup(t, reg, url), 1)
	if ok || runErr != nil {
		t.Fatalf("expected retry on transport error, got %v, %v", ok, runErr)
	}
}

func TestHTTPLookupTruncatedBodyRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nshort")
		_ = buf.Flush()
	}))
	t.Cleanup(server.Close)

	reg, err := jobs.NewRegistry(jobs.Deps{HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	lookup := decodeLookup(t, reg, server.URL)
	ok, runErr := runTask(t, lookup, 1)
	if ok || runErr != nil {
		t.Fatalf("expected retry on truncated body, got %v, %v", ok, runErr)
	}
	if lookup.LastStatus != 0 || !lookup.CheckedAt.IsZero() {
		t.Fatalf("truncated response recorded: status=%d checked=%v", lookup.LastStatus, lookup.CheckedAt)
	}
}

func TestSleepHonorsAbort(t *testing.T) {
	s := &jobs.Sleep{Seconds: 60}
	rc, done := task.NewContext(context.Background(), s, task.RunInfo{TaskID: 2}, nil, nil)
	defer done()

	result := make(chan error, 1)
	go func() {
		_, err := s.Run(rc)
		result <- err
	}()
	s.Abort()
	select {
	case err := <-result:
		if err == nil {
			t.Fatal("expected aborted sleep to report the cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sleep did not stop after abort")
	}
}

func TestEchoFailAttempts(t *testing.T) {
	e := &jobs.Echo{Message: "hello", FailAttempts: 2}
	for attempt, want := range []bool{false, false, true} {
		ok, err := runTask(t, e, attempt+1)
		if err != nil || ok != want {
			t.Fatalf("attempt %d: Run = %v, %v; want %v", attempt+1, ok, err, want)
		}
	}
}

func TestDepsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.HTTPLookup.TimeoutSeconds = 3
	cfg.HTTPLookup.UserAgent = "  shelf-sync/2  "

	deps := jobs.DepsFromConfig(cfg)
	if deps.HTTPClient.Timeout != 3*time.Second || deps.UserAgent != "shelf-sync/2" {
		t.Fatalf("unexpected deps: timeout=%s ua=%q", deps.HTTPClient.Timeout, deps.UserAgent)
	}
}

func TestRegisterRejectsDuplicateKinds(t *testing.T) {
	reg, err := jobs.NewRegistry(jobs.Deps{})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if err := jobs.Register(reg, jobs.Deps{}); err == nil {
		t.Fatal("expected second registration to fail")
	}
	want := []string{jobs.KindEcho, jobs.KindHTTPLookup, jobs.KindSleep}
	got := reg.Kinds()
	if len(got) != len(want) {
		t.Fatalf("Kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Kinds = %v, want %v", got, want)
		}
	}
}
