package prwlock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalbasit/prwlock/pkg/prwlock"
)

func TestNew(t *testing.T) {
	t.Parallel()

	c, err := prwlock.New()
	require.NoError(t, err)

	assert.Equal(t, "prwlock", c.Name)

	// The stress subcommand is registered.
	names := make([]string, 0, len(c.Commands))
	for _, sub := range c.Commands {
		names = append(names, sub.Name)
	}

	assert.Contains(t, names, "stress")
}

func TestStress_ShortRun(t *testing.T) {
	t.Parallel()

	c, err := prwlock.New()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = c.Run(ctx, []string{
		"prwlock",
		"--log-level", "error",
		"--log-console-writer-enabled=false",
		"stress",
		"--priority", "write",
		"--readers", "2",
		"--writers", "1",
		"--hold", "0s",
		"--acquire-timeout", "50ms",
		"--duration", "200ms",
	})
	require.NoError(t, err)
}

func TestStress_InvalidPriority(t *testing.T) {
	t.Parallel()

	c, err := prwlock.New()
	require.NoError(t, err)

	err = c.Run(context.Background(), []string{
		"prwlock",
		"--log-level", "error",
		"stress",
		"--priority", "bogus",
		"--duration", "10ms",
	})
	require.Error(t, err)
}
