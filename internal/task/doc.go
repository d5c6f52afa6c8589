// Package task defines the unit of work executed by lane workers.
//
// Concrete tasks embed Base for retry, priority, category, and abort
// handling, implement Kind, Description, and Run, and are registered with a
// Registry so they can be stored as a versioned envelope
// {"kind","version","data"} and decoded again after a restart. Payloads that
// no longer decode come back as a LegacyTask that fails on its first run.
package task
