package lock

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	otelPackageName = "github.com/kalbasit/prwlock/pkg/lock"
)

// Acquisition results recorded by the metrics below.
const (
	resultFast             = "fast"
	resultQueued           = "queued"
	resultImmediateTimeout = "immediate_timeout"
)

var (
	//nolint:gochecknoglobals
	meter metric.Meter

	// acquisitionsTotal tracks every ReadLock/WriteLock call by outcome.
	//nolint:gochecknoglobals
	acquisitionsTotal metric.Int64Counter

	// grantsTotal tracks waiters granted from the queue.
	//nolint:gochecknoglobals
	grantsTotal metric.Int64Counter

	// timeoutsTotal tracks waiters that expired before being granted.
	//nolint:gochecknoglobals
	timeoutsTotal metric.Int64Counter

	// waitDuration tracks how long waiters spent queued, whatever the outcome.
	//nolint:gochecknoglobals
	waitDuration metric.Float64Histogram

	// callbackPanicsTotal tracks panics recovered from completion callbacks.
	//nolint:gochecknoglobals
	callbackPanicsTotal metric.Int64Counter
)

//nolint:gochecknoinits
func init() {
	meter = otel.Meter(otelPackageName)

	var err error

	acquisitionsTotal, err = meter.Int64Counter(
		"prwlock_acquisitions_total",
		metric.WithDescription("Total number of lock acquisition requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		panic(err)
	}

	grantsTotal, err = meter.Int64Counter(
		"prwlock_queued_grants_total",
		metric.WithDescription("Total number of waiters granted from the queue"),
		metric.WithUnit("{grant}"),
	)
	if err != nil {
		panic(err)
	}

	timeoutsTotal, err = meter.Int64Counter(
		"prwlock_timeouts_total",
		metric.WithDescription("Total number of waiters that timed out"),
		metric.WithUnit("{timeout}"),
	)
	if err != nil {
		panic(err)
	}

	waitDuration, err = meter.Float64Histogram(
		"prwlock_wait_duration_seconds",
		metric.WithDescription("Time spent queued between enqueue and grant or expiry"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}

	callbackPanicsTotal, err = meter.Int64Counter(
		"prwlock_callback_panics_total",
		metric.WithDescription("Total number of panics recovered from completion callbacks"),
		metric.WithUnit("{panic}"),
	)
	if err != nil {
		panic(err)
	}
}

// recordAcquisition records one ReadLock/WriteLock call.
// result is one of resultFast, resultQueued or resultImmediateTimeout.
func recordAcquisition(k lockKind, result string) {
	if acquisitionsTotal == nil {
		return
	}

	acquisitionsTotal.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("kind", k.String()),
			attribute.String("result", result),
		),
	)
}

// recordGrant records a waiter leaving the queue with a grant.
func recordGrant(k lockKind, waited time.Duration) {
	if grantsTotal == nil {
		return
	}

	grantsTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", k.String())))
	waitDuration.Record(context.Background(), waited.Seconds(),
		metric.WithAttributes(
			attribute.String("kind", k.String()),
			attribute.String("outcome", "granted"),
		),
	)
}

// recordTimeout records a waiter leaving the queue on expiry.
func recordTimeout(k lockKind, waited time.Duration) {
	if timeoutsTotal == nil {
		return
	}

	timeoutsTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", k.String())))
	waitDuration.Record(context.Background(), waited.Seconds(),
		metric.WithAttributes(
			attribute.String("kind", k.String()),
			attribute.String("outcome", "timeout"),
		),
	)
}

// recordCallbackPanic records a panic recovered from a completion callback.
func recordCallbackPanic() {
	if callbackPanicsTotal == nil {
		return
	}

	callbackPanicsTotal.Add(context.Background(), 1)
}
