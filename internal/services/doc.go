// Package services defines shared utilities consumed by the ripping pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, track numbers, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent exit codes and run outcomes.
//
// Use these helpers when wiring new pipeline code so operational behaviour
// (error handling, observability) stays uniform.
package services
