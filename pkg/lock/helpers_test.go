package lock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalbasit/prwlock/pkg/lock"
)

// completionChan returns a completion callback together with the channel it
// delivers on. The channel is buffered so the dispatcher never blocks on it.
func completionChan() (lock.CompletionFunc, chan error) {
	ch := make(chan error, 1)

	return func(err error) { ch <- err }, ch
}

// waitOutcome receives one completion outcome or fails the test.
func waitOutcome(t *testing.T, ch <-chan error) error {
	t.Helper()

	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a completion callback")

		return nil
	}
}

// requireNoOutcome asserts that no completion is delivered within the grace
// period.
func requireNoOutcome(t *testing.T, ch <-chan error) {
	t.Helper()

	select {
	case err := <-ch:
		t.Fatalf("unexpected completion delivered: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

// mustReadLock acquires a read lock, waiting for the completion if the grant
// is not inline.
func mustReadLock(t *testing.T, l *lock.Lock) {
	t.Helper()

	done, ch := completionChan()
	l.ReadLock(-1, done)
	require.NoError(t, waitOutcome(t, ch))
}

// mustWriteLock acquires the write lock, waiting for the completion if the
// grant is not inline.
func mustWriteLock(t *testing.T, l *lock.Lock) {
	t.Helper()

	done, ch := completionChan()
	l.WriteLock(-1, done)
	require.NoError(t, waitOutcome(t, ch))
}
