// Package logs reads the cdrip log file for the `cdrip logs` command and the
// daemon's /api/logs endpoint.
//
// Reads are offset based: a negative offset returns the last N lines, and the
// returned offset lets the caller continue where the previous read stopped.
// Follow polls for appended lines until its context ends.
package logs
