// Package daemonrun hosts the foreground daemon process: it builds the
// logger, opens the queue, wires the lane manager, daemon, and IPC server,
// and waits for a termination signal.
package daemonrun
