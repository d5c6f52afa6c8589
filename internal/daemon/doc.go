// Package daemon coordinates the long-running taskq process.
//
// It wires configuration, queue storage, the lane manager, and the HTTP API
// into a single lifecycle with flock-based locking so only one process drives
// a queue database at a time. The daemon also owns the periodic retention
// pass that trims old tasks and events.
//
// Keep orchestration logic here: task behaviour lives in internal/jobs and
// scheduling in internal/workflow, while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
