// Package handlers implements the business logic for CLI commands.
//
// Each handler loads the configuration, builds the control plane client and
// the allocation orchestrator, runs one batch operation and prints its
// result. Factory function variables allow tests to replace the control
// plane with an in-memory fake.
package handlers
