// Package logs reads the daemon log file for `taskq logs`: the last N lines
// and, when following, whatever is appended afterwards. Rotation by
// truncation is detected and reading restarts from the top.
package logs
