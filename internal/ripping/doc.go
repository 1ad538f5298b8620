// Package ripping drives a full disc rip: it serializes access to the drive,
// records a session in the store, extracts each selected track with a shared
// extraction worker, writes WAV files, persists every run's protocol, and
// reports milestones through notifications.
//
// Tracks that are not selected are still accounted for so that overall
// progress covers the whole disc. Cancelling the context stops the current
// track at the next sector boundary.
package ripping
