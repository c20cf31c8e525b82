// Package procsup implements the process supervisor (spec §4.E): spawning
// workers by re-executing the current binary in a hidden worker mode (Go
// has no raw fork to copy), and the kill/reap operations used to tear a
// run down.
package procsup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/stressgo/stressgo/internal/errs"
	"github.com/stressgo/stressgo/internal/logging"
	"github.com/stressgo/stressgo/internal/settings"
)

// WorkerModeFlag is the hidden CLI flag a re-exec'd process uses to
// recognize it's a worker rather than the supervisor, analogous to the C
// original's post-fork branch.
const WorkerModeFlag = "--stressgo-worker"

// maxSpawnAttempts bounds retries on EAGAIN/EINTR from exec, per spec §4.E.
const maxSpawnAttempts = 10

// spawnLimiter gates retry admission so a storm of EAGAIN failures backs
// off instead of busy-looping; grounded on catrate's sliding-window
// limiter, the same dependency the teacher already requires.
var spawnLimiter = catrate.NewLimiter(map[time.Duration]int{
	time.Second: 20,
})

// Handle is a live or reaped worker process.
type Handle struct {
	PID int
	cmd *exec.Cmd
}

// WorkerParams is the small per-worker blob the supervisor hands a
// re-exec'd child over the fd-4 pipe, rather than as CLI args: it carries
// everything the worker's Args (spec §3) needs beyond its own identity.
type WorkerParams struct {
	Instance       int                        `json:"instance"`
	TotalInstances int                        `json:"total_instances"`
	Slot           int                        `json:"slot"`
	EndTimeUnix    int64                      `json:"end_time_unix"`
	MaxOps         uint64                     `json:"max_ops"`
	Settings       map[string]settings.Value `json:"settings,omitempty"`

	// SchedPolicy, SchedPriority, SchedUndefined, and the deadline trio carry
	// the run's --sched family of flags (spec §6) across the re-exec
	// boundary, in the same calling convention schedpolicy.Request uses.
	SchedPolicy      int    `json:"sched_policy"`
	SchedPriority    int    `json:"sched_priority"`
	SchedUndefined   bool   `json:"sched_undefined"`
	SchedAggressive  bool   `json:"sched_aggressive"`
	SchedPeriodNS    uint64 `json:"sched_period_ns,omitempty"`
	SchedRuntimeNS   uint64 `json:"sched_runtime_ns,omitempty"`
	SchedDeadlineNS  uint64 `json:"sched_deadline_ns,omitempty"`
	Quiet            bool   `json:"quiet"`

	// Maximize and Minimize carry --maximize/--minimize (spec §6) across
	// the re-exec boundary into registry.EntryArgs.
	Maximize bool `json:"maximize,omitempty"`
	Minimize bool `json:"minimize,omitempty"`
	// Verify carries the run's global --verify flag; a stressor whose
	// Descriptor.Verification is VerificationOptional only performs its
	// round-trip check when this is true.
	Verify bool `json:"verify,omitempty"`
}

// SpawnConfig describes one worker to spawn.
type SpawnConfig struct {
	StressorName string
	Instance     int
	ArenaFD      uintptr // duplicated into the child via ExtraFiles[0] (fd 3)
	Params       WorkerParams
	ExtraArgs    []string
	Stdout       *os.File
	Stderr       *os.File
}

// arenaFile wraps ArenaFD as an *os.File suitable for exec.Cmd.ExtraFiles.
// The Go runtime requires ExtraFiles entries be distinct *os.File values;
// callers pass the Arena's own FD via this helper so the supervisor
// doesn't need to know Arena's internal representation.
func arenaFile(fd uintptr) *os.File {
	return os.NewFile(fd, "stressgo-arena")
}

// SpawnWorker forks (via re-exec) a worker process for the given
// descriptor and instance. On EAGAIN/EINTR it retries, making up to
// maxSpawnAttempts attempts in all, with jittered back-off gated by spawnLimiter; any
// other error is returned immediately for the caller to aggregate (spec
// §4.E).
func SpawnWorker(ctx context.Context, cfg SpawnConfig) (*Handle, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("procsup: resolve executable: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxSpawnAttempts; attempt++ {
		if attempt > 0 {
			if _, ok := spawnLimiter.Allow("spawn-retry"); !ok {
				return nil, &errs.ResourceError{Op: "spawn_worker", Cause: lastErr}
			}
			backoff := time.Duration(attempt) * 10 * time.Millisecond
			backoff += time.Duration(rand.N(int64(5 * time.Millisecond)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		args := append([]string{
			WorkerModeFlag,
			"--stressor", cfg.StressorName,
			"--instance", fmt.Sprintf("%d", cfg.Instance),
		}, cfg.ExtraArgs...)

		paramsR, paramsW, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("procsup: params pipe: %w", err)
		}

		cmd := exec.CommandContext(ctx, exe, args...)
		cmd.ExtraFiles = []*os.File{arenaFile(cfg.ArenaFD), paramsR}
		cmd.Stdout = cfg.Stdout
		cmd.Stderr = cfg.Stderr

		if err := cmd.Start(); err != nil {
			paramsR.Close()
			paramsW.Close()
			lastErr = err
			if isRetryable(err) {
				logging.Warn("procsup", "spawn retry", map[string]any{
					"stressor": cfg.StressorName,
					"instance": cfg.Instance,
					"attempt":  attempt + 1,
				})
				continue
			}
			return nil, &errs.ResourceError{Op: "spawn_worker", Cause: err}
		}
		paramsR.Close()

		blob, err := json.Marshal(cfg.Params)
		if err != nil {
			paramsW.Close()
			return nil, fmt.Errorf("procsup: marshal worker params: %w", err)
		}
		if _, err := paramsW.Write(blob); err != nil {
			paramsW.Close()
			return nil, fmt.Errorf("procsup: write worker params: %w", err)
		}
		paramsW.Close()

		return &Handle{PID: cmd.Process.Pid, cmd: cmd}, nil
	}

	return nil, &errs.ResourceError{Op: "spawn_worker", Cause: lastErr}
}

// ReadWorkerParams reads and decodes the WorkerParams blob a re-exec'd
// child receives on fd 4 (the second ExtraFiles entry SpawnWorker sets
// up), called once at worker start-up before the arena is attached.
func ReadWorkerParams() (WorkerParams, error) {
	f := os.NewFile(4, "stressgo-params")
	defer f.Close()
	var p WorkerParams
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return WorkerParams{}, fmt.Errorf("procsup: decode worker params: %w", err)
	}
	return p, nil
}

func isRetryable(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR)
}

// Wait blocks until the worker exits, returning its exit status. It is the
// non-signaling counterpart to KillAndWait, used on the normal-termination
// path where no signal needs to be sent first.
func (h *Handle) Wait() (int, error) {
	err := h.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// guardPID reports whether pid is one the supervisor must never signal:
// pid <= 1, or the supervisor's own pid. Spec §4.E requires this be a
// logged, successful no-op rather than an error.
func guardPID(pid int) bool {
	return pid <= 1 || pid == os.Getpid()
}

// KillPID sends SIGKILL to pid (spec §4.E); see procsup_linux.go /
// procsup_other.go for the platform-specific signal and reap primitives.
func KillPID(pid int) error {
	if guardPID(pid) {
		logging.Warn("procsup", "refusing to signal protected pid", map[string]any{"pid": pid})
		return nil
	}
	return killPIDPlatform(pid)
}

// KillSig sends sig to pid, delegating to KillPID for SIGKILL.
func KillSig(pid int, sig syscall.Signal) error {
	if sig == syscall.SIGKILL {
		return KillPID(pid)
	}
	if guardPID(pid) {
		logging.Warn("procsup", "refusing to signal protected pid", map[string]any{"pid": pid})
		return nil
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return fmt.Errorf("procsup: kill pid %d with %v: %w", pid, sig, err)
	}
	return nil
}

// reap polling parameters for KillAndWait (spec §4.E).
const (
	escalateAfterIterations = 120
	abandonAfterIterations  = 600
	sleepAfterIteration     = 10
)

// ContinueFunc reports whether the run is still meant to continue; when it
// returns false and the worker hasn't exited after escalateAfterIterations
// loop iterations, KillAndWait escalates to SIGKILL.
type ContinueFunc func() bool

// KillAndWait sends sig to h, then reaps it, tolerating EINTR, escalating
// to SIGKILL after escalateAfterIterations iterations without progress
// once continueFn reports false, and abandoning after
// abandonAfterIterations iterations with a diagnostic (spec §4.E).
func KillAndWait(h *Handle, sig syscall.Signal, continueFn ContinueFunc) (int, error) {
	if guardPID(h.PID) {
		logging.Warn("procsup", "refusing to signal protected pid", map[string]any{"pid": h.PID})
		return 0, nil
	}
	if err := KillSig(h.PID, sig); err != nil {
		return 0, err
	}

	escalated := false
	for i := 0; ; i++ {
		status, exited, err := tryReap(h)
		if err != nil && !errors.Is(err, syscall.EINTR) {
			return -1, err
		}
		if exited {
			return status, nil
		}

		if !escalated && i >= escalateAfterIterations && continueFn != nil && !continueFn() {
			logging.Warn("procsup", "escalating to SIGKILL", map[string]any{"pid": h.PID})
			if err := KillPID(h.PID); err != nil {
				return -1, err
			}
			escalated = true
		}

		if i >= abandonAfterIterations {
			logging.Error("procsup", "abandoning reap, worker may be a zombie", nil, map[string]any{"pid": h.PID})
			return -1, fmt.Errorf("procsup: abandoned reap of pid %d after %d iterations", h.PID, i)
		}

		if i >= sleepAfterIteration {
			time.Sleep(time.Second)
		} else {
			runtimeGosched()
		}
	}
}

// KillAndWaitMany signals every handle first, then reaps all, returning
// the worst (highest) exit status observed, per spec §4.E.
func KillAndWaitMany(handles []*Handle, sig syscall.Signal, continueFn ContinueFunc) (int, error) {
	for _, h := range handles {
		if guardPID(h.PID) {
			continue
		}
		if err := KillSig(h.PID, sig); err != nil {
			logging.Warn("procsup", "signal failed during group kill", map[string]any{"pid": h.PID, "err": err.Error()})
		}
	}

	worst := 0
	var firstErr error
	for _, h := range handles {
		status, err := KillAndWait(h, sig, continueFn)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if status > worst {
			worst = status
		}
	}
	return worst, firstErr
}
