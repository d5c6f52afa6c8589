// Package api defines wire-format types and the administrative service
// shared by the IPC and HTTP layers. It translates queue records into
// transport-friendly DTOs so clients can render tasks and events without
// importing internal types.
//
// # Key Types
//
// Task and Event: transport representations of queue rows. Failure blobs are
// decoded into a Failure struct; task payloads are passed through as
// json.RawMessage.
//
// ManagerStatus and DaemonStatus: running state, live lanes, and queue counts.
//
// Service: enqueue, delete, retry, list, cleanup, and status operations over
// a TaskQueue (normally *workflow.Manager). Enqueue requests are validated
// with go-playground/validator before a task is built from its registered
// kind.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Statuses and lanes are lowercase strings.
// Timestamps use RFC3339 with milliseconds. Bulk operations report a
// per-id outcome instead of failing on the first missing id.
package api
