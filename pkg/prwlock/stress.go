package prwlock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/kalbasit/prwlock/pkg/lock"
	"github.com/kalbasit/prwlock/pkg/lock/registry"
	"github.com/kalbasit/prwlock/pkg/prometheus"
)

type flagSourcesFn func(configFileKey, envVar string) cli.ValueSourceChain

func stressCommand(flagSources flagSourcesFn) *cli.Command {
	return &cli.Command{
		Name:  "stress",
		Usage: "Exercise one shared lock with concurrent readers and writers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "priority",
				Usage:   "Lock priority mode: 'unspecified', 'read' or 'write'",
				Sources: flagSources("stress.priority", "STRESS_PRIORITY"),
				Value:   lock.PriorityUnspecified.String(),
				Validator: func(p string) error {
					_, err := lock.ParsePriority(p)

					return err
				},
			},
			&cli.IntFlag{
				Name:    "readers",
				Usage:   "Number of concurrent reader workers",
				Sources: flagSources("stress.readers", "STRESS_READERS"),
				Value:   8,
			},
			&cli.IntFlag{
				Name:    "writers",
				Usage:   "Number of concurrent writer workers",
				Sources: flagSources("stress.writers", "STRESS_WRITERS"),
				Value:   2,
			},
			&cli.DurationFlag{
				Name:    "acquire-timeout",
				Usage:   "Per-acquisition timeout; 0 means immediate-only, negative waits forever",
				Sources: flagSources("stress.acquire-timeout", "STRESS_ACQUIRE_TIMEOUT"),
				Value:   500 * time.Millisecond,
			},
			&cli.DurationFlag{
				Name:    "hold",
				Usage:   "How long each worker holds the lock once granted",
				Sources: flagSources("stress.hold", "STRESS_HOLD"),
				Value:   time.Millisecond,
			},
			&cli.DurationFlag{
				Name:    "duration",
				Usage:   "How long to run the stress workload",
				Sources: flagSources("stress.duration", "STRESS_DURATION"),
				Value:   10 * time.Second,
			},
			&cli.StringFlag{
				Name:    "name",
				Usage:   "Name of the lock in the registry; empty selects the unnamed lock",
				Sources: flagSources("stress.name", "STRESS_NAME"),
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address (e.g. ':9091'); empty disables the endpoint",
				Sources: flagSources("stress.metrics-addr", "STRESS_METRICS_ADDR"),
			},
		},
		Action: runStress,
	}
}

type stressStats struct {
	readGrants    atomic.Int64
	readTimeouts  atomic.Int64
	writeGrants   atomic.Int64
	writeTimeouts atomic.Int64
}

func runStress(ctx context.Context, cmd *cli.Command) error {
	logger := zerolog.Ctx(ctx).
		With().
		Str("cmd", "stress").
		Str("run_id", uuid.NewString()).
		Logger()
	ctx = logger.WithContext(ctx)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug().Msgf(format, args...)
	})); err != nil {
		logger.Warn().Err(err).Msg("error adjusting GOMAXPROCS")
	}

	priority, err := lock.ParsePriority(cmd.String("priority"))
	if err != nil {
		return fmt.Errorf("error parsing the priority: %w", err)
	}

	if addr := cmd.String("metrics-addr"); addr != "" {
		shutdown, err := serveMetrics(ctx, addr, cmd.Root().Name)
		if err != nil {
			return err
		}

		defer shutdown()

		logger.Info().Str("addr", addr).Msg("Prometheus metrics enabled at /metrics")
	}

	reg := registry.New(lock.Config{Priority: priority, Logger: logger})
	lk := reg.Get(cmd.String("name"))

	logger.Info().
		Str("priority", priority.String()).
		Int("readers", cmd.Int("readers")).
		Int("writers", cmd.Int("writers")).
		Dur("duration", cmd.Duration("duration")).
		Msg("starting the stress workload")

	var (
		stats stressStats
		wg    sync.WaitGroup
	)

	deadline := time.Now().Add(cmd.Duration("duration"))

	for range cmd.Int("readers") {
		wg.Go(func() {
			runWorker(ctx, lk, workerParams{
				write:    false,
				grants:   &stats.readGrants,
				timeouts: &stats.readTimeouts,
				timeout:  cmd.Duration("acquire-timeout"),
				hold:     cmd.Duration("hold"),
				deadline: deadline,
			})
		})
	}

	for range cmd.Int("writers") {
		wg.Go(func() {
			runWorker(ctx, lk, workerParams{
				write:    true,
				grants:   &stats.writeGrants,
				timeouts: &stats.writeTimeouts,
				timeout:  cmd.Duration("acquire-timeout"),
				hold:     cmd.Duration("hold"),
				deadline: deadline,
			})
		})
	}

	wg.Wait()

	logger.Info().
		Int64("read_grants", stats.readGrants.Load()).
		Int64("read_timeouts", stats.readTimeouts.Load()).
		Int64("write_grants", stats.writeGrants.Load()).
		Int64("write_timeouts", stats.writeTimeouts.Load()).
		Int("pending_read_locks", lk.PendingReadLocks()).
		Int("pending_write_locks", lk.PendingWriteLocks()).
		Msg("stress workload finished")

	return nil
}

type workerParams struct {
	write    bool
	grants   *atomic.Int64
	timeouts *atomic.Int64
	timeout  time.Duration
	hold     time.Duration
	deadline time.Time
}

func runWorker(ctx context.Context, lk *lock.Lock, p workerParams) {
	for time.Now().Before(p.deadline) {
		if ctx.Err() != nil {
			return
		}

		acquireFn, releaseFn := lk.ReadLock, lk.ReadUnlock
		if p.write {
			acquireFn, releaseFn = lk.WriteLock, lk.WriteUnlock
		}

		if !acquire(acquireFn, p.timeout) {
			p.timeouts.Add(1)

			continue
		}

		time.Sleep(p.hold)
		releaseFn()
		p.grants.Add(1)
	}
}

// acquire runs one acquisition through the asynchronous completion callback
// and reports whether the lock was granted.
func acquire(acquireFn func(time.Duration, lock.CompletionFunc) bool, timeout time.Duration) bool {
	done := make(chan error, 1)
	acquireFn(timeout, func(err error) { done <- err })

	return <-done == nil
}

// serveMetrics wires the otel meter provider to a Prometheus registry and
// serves it over HTTP. The returned function tears both down.
func serveMetrics(ctx context.Context, addr, serviceName string) (func(), error) {
	logger := zerolog.Ctx(ctx)

	gatherer, shutdown, err := prometheus.SetupMetrics(ctx, serviceName, Version)
	if err != nil {
		return nil, fmt.Errorf("error setting up Prometheus metrics: %w", err)
	}

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("error running the metrics server")
		}
	}()

	return func() {
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing the metrics server")
		}

		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error().Err(err).Msg("error shutting down the meter provider")
		}
	}, nil
}
