// Package termination implements the termination coordinator (spec §4.G):
// the single point that clears the arena's continue flag and records why,
// whether that's a wall-clock budget, a signal, or too many aborted
// instances.
package termination

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/stressgo/stressgo/internal/arena"
	"github.com/stressgo/stressgo/internal/errs"
	"github.com/stressgo/stressgo/internal/logging"
)

// Coordinator owns the single decision of when a run stops early, and why.
type Coordinator struct {
	arena *arena.Arena

	abortThreshold uint64

	mu       sync.Mutex
	reasons  errs.AggregateError
	stopOnce sync.Once

	// warnLimiter throttles repeated force-kill warning log lines so a
	// worker that won't die doesn't flood the log once per reap-loop
	// iteration.
	warnLimiter *catrate.Limiter
}

// New returns a Coordinator over a, clearing the run early once more than
// abortThreshold instances of one stressor have reported FAILURE/NO_RESOURCE.
func New(a *arena.Arena, abortThreshold uint64) *Coordinator {
	return &Coordinator{
		arena:          a,
		abortThreshold: abortThreshold,
		warnLimiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
		}),
	}
}

// stop clears the continue flag and folds the call's reason into the
// aggregate (every call adds one), so the final report can say "both
// a wall-clock budget and SIGTERM asked to stop" rather than discarding all
// but the first.
func (c *Coordinator) stop(reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reasons.Add(reason)
	c.arena.SetContinueFlag(false)
}

// Reason returns the accumulated stop reason, or nil if the run is still
// in progress or ended on its own (every worker returned, e.g. at max-ops,
// with continue still true). An expired wall-clock budget is recorded as a
// stop reason.
func (c *Coordinator) Reason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reasons.Empty() {
		return nil
	}
	return &c.reasons
}

// WatchWallClock arms a timer that clears continue once d elapses,
// returning a stop function the caller should defer to release the timer
// early on normal completion.
func (c *Coordinator) WatchWallClock(d time.Duration) (cancel func()) {
	t := time.AfterFunc(d, func() {
		c.stop(errWallClockExpired)
	})
	return func() { t.Stop() }
}

var errWallClockExpired = &deadlineError{"wall-clock budget exceeded"}

type deadlineError struct{ msg string }

func (e *deadlineError) Error() string { return e.msg }

// WatchSignals installs handlers for SIGINT/SIGTERM/SIGALRM that clear
// continue and record the signal as the stop reason. The returned cancel
// function stops listening; ctx cancellation also stops listening.
func (c *Coordinator) WatchSignals(ctx context.Context) (cancel func()) {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGALRM)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				c.stop(&signalError{sig: sig})
				logging.Info("termination", "stop signal received", map[string]any{"signal": sig.String()})
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	return sync.OnceFunc(func() {
		signal.Stop(ch)
		close(done)
	})
}

type signalError struct{ sig os.Signal }

func (e *signalError) Error() string { return "received signal " + e.sig.String() }

// CheckAbortThreshold takes the running total of aborted instances and,
// the first time it exceeds the configured threshold, stops the run; later
// calls add no further stop reason. It's safe to call from multiple
// goroutines/workers concurrently.
func (c *Coordinator) CheckAbortThreshold(abortedCount uint64) {
	if c.abortThreshold == 0 || abortedCount <= c.abortThreshold {
		return
	}
	c.stopOnce.Do(func() {
		c.stop(&thresholdError{count: abortedCount, threshold: c.abortThreshold})
	})
}

type thresholdError struct {
	count, threshold uint64
}

func (e *thresholdError) Error() string {
	return "abort threshold exceeded"
}

// NoteForceKilled taints the run's force_killed flag (spec §4.G: this
// marks the aggregate bogo counter in the final report as unreliable,
// since a force-killed worker's last counter write may be torn) and logs a
// warning, throttled so a reap loop retrying the escalation doesn't spam
// the log once per iteration.
func (c *Coordinator) NoteForceKilled(stressor string, pid int) {
	c.arena.SetForceKilled()
	c.arena.IncAbortCount()
	if _, ok := c.warnLimiter.Allow("force-kill-warn"); ok {
		logging.Warn("termination", "worker force-killed", map[string]any{
			"stressor": stressor,
			"pid":      pid,
		})
	}
}
