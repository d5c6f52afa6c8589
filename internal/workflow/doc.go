// Package workflow runs queued tasks.
//
// The Manager owns one worker goroutine per active lane. A lane pulls the
// next ready task from the queue store, decodes it through the task registry,
// runs it, and records the outcome: complete, waiting for a retry (with a
// backoff delay), failed, or deleted after an abort. Lanes are started lazily
// on enqueue and exit once their lane has no queued or waiting rows, so an
// idle manager holds no goroutines.
//
// Every claim and delete decision is serialized through the manager mutex so
// a task is never held by two workers, and a task deleted while it runs is
// aborted and removed only after Run returns.
//
// Task and event changes are delivered in order to listeners registered with
// RegisterTaskListener and RegisterEventListener. Close the returned
// Subscription to stop receiving them.
package workflow
