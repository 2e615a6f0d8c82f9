// Package testutil provides shared test utilities for quack-go.
// These helpers reduce duplication across test files and keep async waits consistent.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeout constants.
const (
	// DefaultTestTimeout is the standard timeout for most async test operations.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is for operations expected to complete quickly.
	ShortTestTimeout = 1 * time.Second

	// QuietPeriod is how long a test waits to assert that nothing arrives.
	QuietPeriod = 100 * time.Millisecond
)

// WaitForChannel waits for a signal on the channel or fails after timeout.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}

// WaitForValue receives values from ch until match returns true, failing
// the test on timeout or when ch is closed first. It returns the matching value.
func WaitForValue[T any](t *testing.T, ch <-chan T, timeout time.Duration, match func(T) bool, msg string) T {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				require.Fail(t, msg, "channel closed")
				var zero T
				return zero
			}
			if match == nil || match(v) {
				return v
			}
		case <-deadline:
			require.Fail(t, msg)
			var zero T
			return zero
		}
	}
}

// AssertNoValue fails if ch yields a value within QuietPeriod.
func AssertNoValue[T any](t *testing.T, ch <-chan T, msg string) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			require.Failf(t, msg, "unexpected value: %v", v)
		}
	case <-time.After(QuietPeriod):
	}
}
