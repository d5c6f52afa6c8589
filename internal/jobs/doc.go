// Package jobs provides the task kinds shipped with taskq.
//
//   - http_lookup fetches a URL. 2xx completes, 408/429/5xx and transport
//     errors retry with backoff, any other status fails the task.
//   - sleep waits for a duration, honoring aborts.
//   - echo logs a message; it can be told to ask for retries first, which is
//     handy for exercising the retry path from the CLI.
//
// Register installs all of them on a task.Registry.
package jobs
