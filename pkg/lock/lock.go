// Package lock provides an in-process reader-writer lock with a configurable
// priority policy and per-request timeouts.
//
// The lock grants access to either any number of concurrent readers or a
// single exclusive writer. Acquisition is non-blocking: ReadLock and WriteLock
// return immediately with a boolean reporting whether the grant happened
// inline, and the eventual outcome (grant or timeout) is always delivered
// through the completion callback, asynchronously relative to whichever
// operation triggered it.
//
// Features:
//   - Unspecified (strict FIFO), read-priority and write-priority admission,
//     switchable at runtime
//   - Per-request timeouts, including immediate-only acquisition (timeout 0)
//   - Atomic upgrade (sole reader to writer) and downgrade (writer to reader)
//   - Asynchronous completion dispatch safe for reentrant calls
package lock

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrTimeout is delivered to a request's completion callback when its timeout
// expires before the lock could be granted. It is never returned directly by
// any method.
var ErrTimeout = errors.New("lock: timed out waiting for lock")

// CompletionFunc receives the outcome of an acquisition request. It is
// invoked exactly once per request: with nil once the lock is granted, or
// with ErrTimeout. It is always invoked asynchronously, so it may safely call
// back into the lock. A nil CompletionFunc is allowed; the request then only
// reports through the boolean result of ReadLock/WriteLock.
type CompletionFunc func(err error)

// Lock is a priority-configurable reader-writer lock.
//
// A Lock must not be copied after first use. All methods are safe for
// concurrent use; each operation (state change plus the admission pass it
// triggers) executes as one uninterrupted critical section.
type Lock struct {
	mu sync.Mutex

	readCount int
	writeHeld bool
	priority  Priority

	// queue holds all pending requests in arrival order, readers and writers
	// interleaved. waitingReaders and waitingWriters mirror the per-kind queue
	// sizes at all times.
	queue          []*waiter
	waitingReaders int
	waitingWriters int

	// completions is the FIFO drained by the dispatcher goroutine, see
	// dispatch.go.
	completions []completion
	dispatching bool

	logger zerolog.Logger
}

// New creates a Lock with the given configuration.
func New(cfg Config) *Lock {
	return &Lock{
		priority: cfg.Priority,
		logger:   cfg.Logger,
	}
}

// ReadLock requests shared read access.
//
// It grants inline, and returns true, whenever no writer holds the lock and
// either no writer is waiting or the priority mode is PriorityRead. Note that
// this fast path can grant a fresh reader ahead of readers already waiting in
// the queue; this matches the historical behavior of the admission policy and
// is deliberately not "fixed" to queue the newcomer behind them.
//
// Otherwise the outcome depends on timeout: 0 fails immediately (the callback
// receives ErrTimeout and nothing is enqueued), a positive timeout queues the
// request with an expiry, and a negative timeout queues it indefinitely.
//
// The completion callback is invoked exactly once in every case, always
// asynchronously, even for inline grants.
func (l *Lock) ReadLock(timeout time.Duration, done CompletionFunc) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.writeHeld && (l.waitingWriters == 0 || l.priority == PriorityRead) {
		l.readCount++
		l.complete(done, nil)

		recordAcquisition(kindRead, resultFast)

		return true
	}

	l.admitLater(kindRead, timeout, done)

	return false
}

// WriteLock requests exclusive write access.
//
// It grants inline, and returns true, only when no reader and no writer holds
// the lock. The priority mode does not participate in this fast path.
// Timeout and callback semantics are identical to ReadLock.
func (l *Lock) WriteLock(timeout time.Duration, done CompletionFunc) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.readCount == 0 && !l.writeHeld {
		l.writeHeld = true
		l.complete(done, nil)

		recordAcquisition(kindWrite, resultFast)

		return true
	}

	l.admitLater(kindWrite, timeout, done)

	return false
}

// admitLater queues a request that failed its fast path, or fails it
// outright when timeout is zero. Caller must hold l.mu.
func (l *Lock) admitLater(k lockKind, timeout time.Duration, done CompletionFunc) {
	if timeout == 0 {
		l.complete(done, ErrTimeout)

		recordAcquisition(k, resultImmediateTimeout)

		return
	}

	w := &waiter{
		kind:       k,
		enqueuedAt: time.Now(),
		done:       done,
	}

	if timeout > 0 {
		w.timer = time.AfterFunc(timeout, func() { l.expire(w) })
	}

	l.enqueue(w)

	recordAcquisition(k, resultQueued)
}

// ReadUnlock releases one read hold. It returns false, without touching any
// state, if no read lock is held. A successful release re-evaluates the
// queue and may grant any number of waiters.
func (l *Lock) ReadUnlock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.readCount == 0 {
		l.logger.Debug().Msg("read unlock without a held read lock")

		return false
	}

	l.readCount--
	l.admit()

	return true
}

// WriteUnlock releases the write hold. It returns false, without touching any
// state, if no write lock is held. A successful release re-evaluates the
// queue and may grant any number of waiters.
func (l *Lock) WriteUnlock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.writeHeld {
		l.logger.Debug().Msg("write unlock without a held write lock")

		return false
	}

	l.writeHeld = false
	l.admit()

	return true
}

// UpgradeToWriteLock atomically converts a sole read hold into the write
// hold. It succeeds only when exactly one read lock and no write lock is
// held; it fails, without side effects, otherwise.
//
// The lock tracks counts, not owners: it cannot verify that the caller is the
// reader being upgraded. Callers must uphold that convention themselves.
// Upgrading never frees anyone, so no admission pass runs.
func (l *Lock) UpgradeToWriteLock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writeHeld || l.readCount != 1 {
		l.logger.Debug().
			Int("read_count", l.readCount).
			Bool("write_held", l.writeHeld).
			Msg("upgrade requires exactly one read hold and no write hold")

		return false
	}

	l.readCount = 0
	l.writeHeld = true

	return true
}

// DowngradeToReadLock atomically converts the write hold into a single read
// hold. It succeeds only when the write lock is held; it fails, without side
// effects, otherwise. Downgrading loosens admission, so the queue is
// re-evaluated and compatible waiting readers may be granted.
func (l *Lock) DowngradeToReadLock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.writeHeld {
		l.logger.Debug().Msg("downgrade without a held write lock")

		return false
	}

	l.writeHeld = false
	l.readCount = 1
	l.admit()

	return true
}

// Priority returns the current priority mode.
func (l *Lock) Priority() Priority {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.priority
}

// SetPriority changes the priority mode. Pending waiters keep their arrival
// order and their timers; no waiter is granted or cancelled by the change
// itself. The new mode applies from the next admission pass on.
func (l *Lock) SetPriority(p Priority) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.priority = p
}

// CurrentReadLocks returns the number of read holds.
func (l *Lock) CurrentReadLocks() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.readCount
}

// HasWriteLock reports whether the write lock is held.
func (l *Lock) HasWriteLock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.writeHeld
}

// PendingReadLocks returns the number of queued read requests.
func (l *Lock) PendingReadLocks() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.waitingReaders
}

// PendingWriteLocks returns the number of queued write requests.
func (l *Lock) PendingWriteLocks() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.waitingWriters
}
