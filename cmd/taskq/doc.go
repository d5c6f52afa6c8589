// Command taskq is the CLI for the taskq daemon. It starts and stops the
// background process, enqueues and inspects tasks over the daemon's IPC
// socket, and falls back to the queue database directly when the daemon is
// not running.
package main
