// Package notifications publishes task outcomes to ntfy.
//
// NewService returns a no-op Service when no topic is configured, so the
// daemon can always register the listener. Listener adapts a Service into a
// workflow task listener that reports failures and, when enabled,
// completions.
package notifications
