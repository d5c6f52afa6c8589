package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"taskq/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "queue.db")
	if err := os.WriteFile(existing, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"missing in writable dir", filepath.Join(dir, "fresh.db"), true},
		{"existing file", existing, true},
		{"directory", dir, false},
		{"missing parent", filepath.Join(dir, "absent", "queue.db"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckDatabaseFile("db", tt.path)
			if result.Passed != tt.want {
				t.Fatalf("Passed = %v, want %v (%s)", result.Passed, tt.want, result.Detail)
			}
		})
	}
}

func TestCheckBindAddress(t *testing.T) {
	if result := CheckBindAddress(context.Background(), "api", "127.0.0.1:0"); !result.Passed {
		t.Fatalf("expected free port to pass: %s", result.Detail)
	}
	if result := CheckBindAddress(context.Background(), "api", "no-port"); result.Passed {
		t.Fatal("expected malformed address to fail")
	}

	held, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer held.Close()
	if result := CheckBindAddress(context.Background(), "api", held.Addr().String()); result.Passed {
		t.Fatal("expected busy port to fail")
	}
}

func TestCheckSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.sock")
	if result := CheckSocket("daemon", path); result.Passed || !result.Optional {
		t.Fatalf("expected optional failure, got %+v", result)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	defer listener.Close()
	if result := CheckSocket("daemon", path); !result.Passed {
		t.Fatalf("expected reachable socket: %s", result.Detail)
	}
}

func TestRunAllAndFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}

	cfg.Paths.LogDir = filepath.Join(testsupport.BaseDir(cfg), "missing")
	cfg.Paths.APIBind = ""
	results = RunAll(context.Background(), cfg)
	failed := Failed(results)
	if len(results) != 3 || len(failed) != 1 || failed[0].Name != "Log directory" {
		t.Fatalf("unexpected results: %+v", results)
	}
}
