// Package preflight provides readiness checks for the filesystem paths and
// network endpoints taskq depends on.
//
// These checks run in two contexts:
//   - "taskq daemon" calls RunAll before opening the queue and refuses to
//     start when a required check fails.
//   - "taskq status" renders every result so operators can spot permission
//     or port problems without reading logs.
//
// Optional checks are skipped when the feature they cover is disabled.
package preflight
