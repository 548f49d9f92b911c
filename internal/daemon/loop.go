// Package daemon implements the Balancer Loop shared by both balancer
// binaries (spec §4.7): a single-threaded tick driver owning the tick
// counter and the consecutive-failure budget, with cancellation observed
// only between ticks.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"hyperbalance/internal/logx"
	"hyperbalance/internal/pipeline"
)

// TickFunc runs one iteration of a daemon's pipeline: snapshot, delta,
// schedule, commit. tickNum is the count of ticks already completed,
// starting at 0. A returned error wrapped in one of internal/pipeline's
// severity types tells the Loop how to account it; Flag-severity anomalies
// are expected to be absorbed inside TickFunc, not returned.
type TickFunc func(ctx context.Context, tickNum int) error

// Loop is the shared Balancer Loop. Cross-tick pipeline state (the previous
// vCPU table, the seen-UUID set) is not held here: it belongs to the
// closure the caller supplies as TickFunc, per spec.md §9's instruction to
// keep it owned by the loop's caller rather than as a package global.
type Loop struct {
	Interval    time.Duration
	MaxFailures int
	Tick        TickFunc
	Logger      *logx.Logger

	// Open, if set, runs once before the first tick, inside the same
	// cancelable context the signal watcher controls — so a SIGINT during
	// a stuck initial hypervisor connection attempt still stops the
	// process instead of hanging. A non-nil error is Fatal for process.
	Open func(ctx context.Context) error

	tickCounter         int
	consecutiveFailures int
}

// errShutdownRequested is the signal watcher's sentinel for cancelling the
// errgroup's shared context; it is never itself returned from Run.
var errShutdownRequested = errors.New("shutdown requested")

// Run drives ticks until ctx is canceled or a SIGINT arrives, at which point
// it lets the in-flight tick finish and returns nil. If Open fails or the
// consecutive-failure budget is exhausted it returns a FatalProcessErr.
func (l *Loop) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	var driveErr error
	g.Go(func() error {
		driveErr = l.runPipeline(gctx)
		return driveErr
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-sigCh:
			l.Logger.Status("shutdown signal received, stopping after current tick")
			return errShutdownRequested
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdownRequested) {
		return err
	}
	return driveErr
}

func (l *Loop) runPipeline(ctx context.Context) error {
	if l.Open != nil {
		if err := l.Open(ctx); err != nil {
			return pipeline.FatalProcess(fmt.Errorf("open: %w", err))
		}
	}
	return l.drive(ctx)
}

func (l *Loop) drive(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := l.Tick(ctx, l.tickCounter)
		switch {
		case err == nil:
			l.consecutiveFailures = 0
		case pipeline.Terminating(err):
			l.consecutiveFailures++
			l.Logger.Flag("tick failed", "tick", l.tickCounter, "consecutive_failures", l.consecutiveFailures, "error", err)
			if l.consecutiveFailures >= l.MaxFailures {
				return pipeline.FatalProcess(fmt.Errorf("exceeded %d consecutive tick failures: %w", l.MaxFailures, err))
			}
		default:
			// A Flag-severity error escaped TickFunc instead of being
			// absorbed internally; log it but do not count it against the
			// failure budget.
			l.Logger.Flag("tick reported non-terminating anomaly", "tick", l.tickCounter, "error", err)
		}

		l.tickCounter++

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.Interval):
		}
	}
}
