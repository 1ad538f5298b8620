// Package config loads, normalizes, and validates cdrip configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CDRIP_DEVICE. The Config type centralizes every knob the CLI and daemon
// need: output and state directories, the optical drive, extraction policy
// (paranoia mode, retries, never-skip, sample offset), logging,
// notifications, and daemon behaviour.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
