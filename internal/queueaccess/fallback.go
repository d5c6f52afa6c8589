package queueaccess

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"taskq/internal/config"
	"taskq/internal/ipc"
)

// Session is an Access handle plus whatever it holds open.
type Session struct {
	Access Access
	// Local is true when the daemon was unreachable and the database was
	// opened directly.
	Local bool
	close func() error
}

// Close releases resources associated with the session.
func (s *Session) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback dials the daemon socket and falls back to OpenLocal when
// nothing is listening. Other dial errors are returned as is.
func OpenWithFallback(socketPath string, cfg *config.Config) (*Session, error) {
	client, err := ipc.Dial(socketPath)
	if err == nil {
		return &Session{Access: NewIPCAccess(client), close: client.Close}, nil
	}
	if !Unavailable(err) {
		return nil, fmt.Errorf("connect to daemon at %s: %w", socketPath, err)
	}
	if cfg == nil {
		return nil, errors.New("daemon unreachable and no configuration to open the queue database")
	}
	return OpenLocal(cfg)
}

// Unavailable reports whether a dial error means no daemon is listening.
func Unavailable(err error) bool {
	return errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		os.IsNotExist(err)
}
