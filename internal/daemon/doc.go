// Package daemon runs cdrip in the background.
//
// The daemon holds a single-instance lock, watches udev for inserted audio
// discs (optionally ripping them straight away), serves a small JSON API over
// the session history, and prunes old sessions on a cron schedule.
package daemon
