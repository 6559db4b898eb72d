package lock

// completion is a scheduled callback invocation: either a grant (nil error)
// or a timeout (ErrTimeout).
type completion struct {
	done CompletionFunc
	err  error
}

// complete schedules a callback invocation. Callbacks are delivered strictly
// in scheduling order by a dispatcher goroutine that is spawned lazily when
// the queue becomes non-empty and exits once it is drained. Because the
// dispatcher runs without holding l.mu, callbacks are never synchronous with
// the operation that triggered them and may freely call back into the lock.
// Caller must hold l.mu.
func (l *Lock) complete(done CompletionFunc, err error) {
	if done == nil {
		return
	}

	l.completions = append(l.completions, completion{done: done, err: err})

	if !l.dispatching {
		l.dispatching = true

		go l.dispatch()
	}
}

func (l *Lock) dispatch() {
	for {
		l.mu.Lock()

		if len(l.completions) == 0 {
			l.dispatching = false
			l.mu.Unlock()

			return
		}

		c := l.completions[0]
		l.completions = l.completions[1:]

		l.mu.Unlock()

		l.invoke(c)
	}
}

// invoke runs a single callback. A panic inside the callback is recovered,
// logged and counted; by the time a callback runs, all counter updates and
// cascading grants of the triggering operation have already committed, so a
// faulty callback cannot corrupt the lock or stall later completions.
func (l *Lock) invoke(c completion) {
	defer func() {
		if r := recover(); r != nil {
			recordCallbackPanic()

			l.logger.Error().
				Interface("panic", r).
				Msg("lock completion callback panicked")
		}
	}()

	c.done(c.err)
}
