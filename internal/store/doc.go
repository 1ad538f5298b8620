// Package store persists rip sessions, per-track runs, and their extraction
// protocols in SQLite. The schema is managed with goose migrations embedded
// in the binary; writes retry while the database is locked by another
// process (the daemon and the CLI share one file).
package store
