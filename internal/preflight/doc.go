// Package preflight provides readiness checks for the drive, the directories
// cdrip writes into, and the external services it talks to.
//
// "cdrip status" renders every check; a rip only needs the drive and output
// checks to pass. Checks for disabled features are skipped.
package preflight
