// Package notifications publishes rip milestones to ntfy.
//
// When no topic is configured the service degrades to a no-op, so callers
// never need to check whether notifications are enabled.
package notifications
