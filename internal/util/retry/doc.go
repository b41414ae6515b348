// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] runs on github.com/juju/retry so the clock can be
// replaced in tests. Errors wrapped with [Fatal] stop the loop immediately.
// It is used by the provider adapters for create calls that can hit locked or
// rate limited resources.
package retry
