// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Table / TableOpener: streaming access to one delimited feed file
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - FeedFetcher: only needed for URL fetch mode
//   - RunStore: run history; without it, history is simply not recorded
//   - ProgressSink: progress reporting; NopProgress is used when absent
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
