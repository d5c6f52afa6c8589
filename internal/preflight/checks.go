package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDatabaseFile verifies the queue database can be opened for writing.
// A missing file passes when its directory is writable, since the store
// creates it on first open.
func CheckDatabaseFile(name, path string) Result {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		if dirErr := unix.Access(filepath.Dir(path), unix.W_OK|unix.X_OK); dirErr != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create: %v)", path, dirErr)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
	}
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBindAddress verifies the HTTP API address can be listened on. A port
// held by a running daemon fails this check, so callers treat it as optional
// while the daemon is up.
func CheckBindAddress(ctx context.Context, name, addr string) Result {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", addr, err)}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var lc net.ListenConfig
	listener, err := lc.Listen(checkCtx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", addr, err)}
	}
	_ = listener.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", addr)}
}

// CheckSocket reports whether a daemon is answering on the IPC socket path.
func CheckSocket(name, path string) Result {
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("%s (not reachable)", path)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("%s (daemon reachable)", path)}
}
