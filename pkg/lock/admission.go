package lock

import "time"

// admit runs one admission pass over the queue, granting every waiter the
// current priority mode allows. It is invoked after every release, downgrade
// and timeout expiry. Caller must hold l.mu.
func (l *Lock) admit() {
	switch l.priority {
	case PriorityRead:
		l.admitReadPriority()
	case PriorityWrite:
		l.admitWritePriority()
	default:
		l.admitInOrder()
	}
}

// compatible reports whether a waiter of the given kind could be granted in
// the current state. Caller must hold l.mu.
func (l *Lock) compatible(k lockKind) bool {
	if k == kindWrite {
		return l.readCount == 0 && !l.writeHeld
	}

	return !l.writeHeld
}

// admitInOrder implements PriorityUnspecified: strict arrival order across
// both kinds. An incompatible head blocks the whole queue; nobody skips
// ahead.
func (l *Lock) admitInOrder() {
	for len(l.queue) > 0 && l.compatible(l.queue[0].kind) {
		l.grant(0)
	}
}

// admitReadPriority drains every waiting reader while no writer holds the
// lock; only with the read side empty is a single compatible writer
// considered.
func (l *Lock) admitReadPriority() {
	for {
		if i := l.oldest(kindRead); i >= 0 {
			if !l.compatible(kindRead) {
				return
			}

			l.grant(i)

			continue
		}

		if i := l.oldest(kindWrite); i >= 0 && l.compatible(kindWrite) {
			l.grant(i)
		}

		return
	}
}

// admitWritePriority services the oldest waiting writer first and
// exclusively; readers are considered only while no writer waits, and then
// every compatible reader drains in one pass.
func (l *Lock) admitWritePriority() {
	if i := l.oldest(kindWrite); i >= 0 {
		if l.compatible(kindWrite) {
			l.grant(i)
		}

		return
	}

	for {
		i := l.oldest(kindRead)
		if i < 0 || !l.compatible(kindRead) {
			return
		}

		l.grant(i)
	}
}

// grant admits the waiter at queue index i: it leaves the queue, its timer is
// stopped, the lock state is updated and its callback is scheduled with a nil
// error. Caller must hold l.mu.
func (l *Lock) grant(i int) {
	w := l.removeAt(i)

	if w.timer != nil {
		w.timer.Stop()
	}

	if w.kind == kindWrite {
		l.writeHeld = true
	} else {
		l.readCount++
	}

	l.complete(w.done, nil)

	recordGrant(w.kind, time.Since(w.enqueuedAt))
}

// expire is the timer callback for a queued waiter. A waiter that was granted
// before the timer could be stopped is no longer in the queue and the expiry
// is a no-op. Removing an expired waiter re-runs admission once: under
// PriorityUnspecified an expired writer at the head may have been blocking
// compatible readers behind it.
func (l *Lock) expire(w *waiter) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(w)
	if i < 0 {
		return
	}

	l.removeAt(i)
	l.complete(w.done, ErrTimeout)

	recordTimeout(w.kind, time.Since(w.enqueuedAt))

	l.admit()
}
