// Package testutil carries the shared plumbing for tablemate's tests: a
// throwaway database session, request builders and mock collaborators.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/zerodha/logf"
)

// TestContext returns a context that outlives any reasonable test step and
// is cancelled when the test finishes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// NopLogger returns a logger that stays quiet unless something errors
func NopLogger() logf.Logger {
	return logf.New(logf.Opts{Level: logf.ErrorLevel})
}

// AssertEventually polls condition until it holds or the timeout lapses.
// For asserting on work a handler hands off to a goroutine.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
