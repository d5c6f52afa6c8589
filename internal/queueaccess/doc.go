// Package queueaccess gives CLI commands one interface over the queue: the
// daemon's JSON-RPC socket when it is up, the SQLite database when it is not.
package queueaccess
