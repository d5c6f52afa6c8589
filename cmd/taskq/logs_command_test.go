package main

import (
	"os"
	"strings"
	"testing"
)

func TestLogsShowsTrailingLines(t *testing.T) {
	env := setupCLITestEnv(t)
	content := "first\nsecond\nthird\n"
	if err := os.WriteFile(env.cfg.DaemonLogPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out := env.mustRun(t, "logs", "-n", "2")
	if strings.Contains(out, "first") {
		t.Fatalf("expected only two lines, got %q", out)
	}
	requireContains(t, out, "second\nthird\n")
}
