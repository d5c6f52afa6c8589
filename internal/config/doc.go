// Package config loads, normalizes, and validates taskq configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TASKQ_API_TOKEN. The Config type centralizes every knob the daemon and CLI
// need: where the task database lives, which lanes exist, and how failed tasks
// back off before their next attempt.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
