package lock

import (
	"time"
)

// lockKind distinguishes read waiters from write waiters.
type lockKind int

const (
	kindRead lockKind = iota
	kindWrite
)

func (k lockKind) String() string {
	if k == kindWrite {
		return "write"
	}

	return "read"
}

// waiter is a request that could not be granted on its fast path. It lives in
// the lock's queue from enqueue until it is granted or its timer expires,
// never both.
type waiter struct {
	kind       lockKind
	enqueuedAt time.Time
	done       CompletionFunc

	// timer is non-nil only for requests with a positive timeout. It is
	// stopped on grant; a stop that loses the race against expiry is harmless
	// because expiry ignores waiters no longer in the queue.
	timer *time.Timer
}

// enqueue appends a new waiter in age order and updates the pending counters.
// Caller must hold l.mu.
func (l *Lock) enqueue(w *waiter) {
	l.queue = append(l.queue, w)

	if w.kind == kindWrite {
		l.waitingWriters++
	} else {
		l.waitingReaders++
	}
}

// removeAt removes the waiter at index i and updates the pending counters.
// Caller must hold l.mu.
func (l *Lock) removeAt(i int) *waiter {
	w := l.queue[i]

	l.queue = append(l.queue[:i], l.queue[i+1:]...)

	if w.kind == kindWrite {
		l.waitingWriters--
	} else {
		l.waitingReaders--
	}

	return w
}

// oldest returns the index of the oldest queued waiter of the given kind, or
// -1. The queue is append-only at the tail, so the first match is the oldest.
// Caller must hold l.mu.
func (l *Lock) oldest(k lockKind) int {
	for i, w := range l.queue {
		if w.kind == k {
			return i
		}
	}

	return -1
}

// indexOf returns the current queue position of w, or -1 if w has already
// been granted or expired. Caller must hold l.mu.
func (l *Lock) indexOf(target *waiter) int {
	for i, w := range l.queue {
		if w == target {
			return i
		}
	}

	return -1
}
