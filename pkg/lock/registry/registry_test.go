package registry_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalbasit/prwlock/pkg/lock"
	"github.com/kalbasit/prwlock/pkg/lock/registry"
)

func TestRegistry_SingletonPerName(t *testing.T) {
	t.Parallel()

	reg := registry.New(lock.Config{Priority: lock.PriorityWrite})

	a := reg.Get("resource-a")
	b := reg.Get("resource-b")

	assert.NotSame(t, a, b)
	assert.Same(t, a, reg.Get("resource-a"))
	assert.Equal(t, 2, reg.Len())

	// Locks inherit the registry's configuration.
	assert.Equal(t, lock.PriorityWrite, a.Priority())
}

func TestRegistry_EmptyName(t *testing.T) {
	t.Parallel()

	reg := registry.New(lock.Config{})

	// The empty string designates the unnamed lock; it is a key like any
	// other.
	unnamed := reg.Get("")
	assert.Same(t, unnamed, reg.Get(""))
	assert.NotSame(t, unnamed, reg.Get("named"))
}

func TestRegistry_SharedState(t *testing.T) {
	t.Parallel()

	reg := registry.New(lock.Config{})

	// A write hold taken through one lookup is observed through another.
	done := make(chan error, 1)
	require.True(t, reg.Get("shared").WriteLock(-1, func(err error) { done <- err }))
	require.NoError(t, <-done)

	assert.True(t, reg.Get("shared").HasWriteLock())
	require.True(t, reg.Get("shared").WriteUnlock())
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	t.Parallel()

	reg := registry.New(lock.Config{})

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		locks = make(map[*lock.Lock]struct{})
	)

	for range 20 {
		wg.Go(func() {
			l := reg.Get("contended")

			mu.Lock()
			locks[l] = struct{}{}
			mu.Unlock()
		})
	}

	wg.Wait()

	// Every goroutine got the same instance.
	assert.Len(t, locks, 1)
	assert.Equal(t, 1, reg.Len())
}
