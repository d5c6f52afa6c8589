// Package queue persists lanes, tasks, and events in SQLite and exposes the
// primitives lane workers use to drive a task's lifecycle.
//
// The Store owns the database connection, schema initialization, the
// "next ready task per lane" query, status transitions (queued, running,
// waiting, complete, failed), event logging, and the retention passes that
// purge old tasks, old events, and orphans. Task payloads are opaque bytes
// here; encoding them is the task package's job.
//
// Schema changes bump the version in schema.go; users delete the database to
// adopt the new schema.
package queue
