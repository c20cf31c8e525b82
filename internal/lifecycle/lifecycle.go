// Package lifecycle implements the per-worker state machine (spec §4.D): a
// lock-free atomic state cell with cache-line padding, the same shape as
// eventloop's FastState, generalized from the event loop's five states to
// the worker lifecycle's ten plus RECOVER.
package lifecycle

import "sync/atomic"

// State is a worker's position in the INIT → SYNC_WAIT → RUN → STOP/TIDY →
// DEINIT → EXIT lifecycle, plus the RECOVER state used to model
// sigsetjmp/siglongjmp-style recovery from a fatal signal (spec §9).
type State uint64

const (
	// StateInit: worker just forked, installs signal handlers and applies
	// scheduling policy.
	StateInit State = iota
	// StateSyncWait: worker publishes INIT-complete and blocks on the
	// cross-process barrier until every sibling has also reached SYNC_WAIT.
	StateSyncWait
	// StateRun: the entry function is executing.
	StateRun
	// StateWait: entry function is blocked in a cooperative wait (used by
	// stressors that poll external resources); distinguished from RUN so
	// the supervisor's liveness diagnostics can tell "busy" from "blocked".
	StateWait
	// StateStop: entry function returned; about to release resources.
	StateStop
	// StateTidy: error path equivalent of STOP — resources are freed after
	// an abnormal return.
	StateTidy
	// StateWaitComplete: resource release finished, about to publish DEINIT.
	StateWaitComplete
	// StateZombie: worker process has exited but has not yet been reaped by
	// the supervisor.
	StateZombie
	// StateRecover: a fatal signal was caught at a marked safe point; the
	// worker is unwinding to its designated resumption point instead of
	// crashing (spec §4.J, §9 "Exception-for-control-flow").
	StateRecover
	// StateDeinit: publish final state, then exit with a status code.
	StateDeinit
	// StateExit: terminal state, observed by the supervisor after reap.
	StateExit
)

// String renders a State for logging.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateSyncWait:
		return "SYNC_WAIT"
	case StateRun:
		return "RUN"
	case StateWait:
		return "WAIT"
	case StateStop:
		return "STOP"
	case StateTidy:
		return "TIDY"
	case StateWaitComplete:
		return "WAIT_COMPLETE"
	case StateZombie:
		return "ZOMBIE"
	case StateRecover:
		return "RECOVER"
	case StateDeinit:
		return "DEINIT"
	case StateExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// Cell is a lock-free per-worker state cell. Padding on either side of the
// atomic word avoids false sharing when many Cells are packed into a single
// shared-memory slab (internal/arena), mirroring eventloop's FastState.
type Cell struct { // betteralign:ignore
	_ [64]byte
	v atomic.Uint64
	_ [56]byte
}

// NewCell returns a Cell initialized to StateInit.
func NewCell() *Cell {
	c := &Cell{}
	c.v.Store(uint64(StateInit))
	return c
}

// Load returns the current state.
func (c *Cell) Load() State { return State(c.v.Load()) }

// Store unconditionally sets the state. Used only for the initial
// transition out of a freshly forked worker and for the supervisor's own
// bookkeeping; in-band transitions should prefer TryTransition.
func (c *Cell) Store(s State) { c.v.Store(uint64(s)) }

// TryTransition attempts an atomic from→to move, returning whether it
// succeeded.
func (c *Cell) TryTransition(from, to State) bool {
	return c.v.CompareAndSwap(uint64(from), uint64(to))
}

// TransitionAny attempts to move from any of validFrom to to.
func (c *Cell) TransitionAny(validFrom []State, to State) bool {
	for _, from := range validFrom {
		if c.v.CompareAndSwap(uint64(from), uint64(to)) {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the worker has reached EXIT.
func (c *Cell) IsTerminal() bool { return c.Load() == StateExit }

// IsRunning reports whether the worker is actively executing its entry
// function or cooperatively waiting inside it.
func (c *Cell) IsRunning() bool {
	switch c.Load() {
	case StateRun, StateWait:
		return true
	default:
		return false
	}
}

// SafePoint is the flag a fatal-signal handler sets when it requests a
// RECOVER transition instead of letting the process crash: internal/sig's
// FatalRecovery handler calls MarkSafePoint right after moving the worker's
// Cell to StateRecover. A worker loop can check Armed at its own safe
// points (e.g. top of each iteration) and call ClearSafePoint once it has
// handled the request.
type SafePoint struct {
	armed atomic.Bool
}

// MarkSafePoint sets the flag, recording that a RECOVER transition was
// requested.
func (p *SafePoint) MarkSafePoint() { p.armed.Store(true) }

// ClearSafePoint resets the flag.
func (p *SafePoint) ClearSafePoint() { p.armed.Store(false) }

// Armed reports whether the flag is set.
func (p *SafePoint) Armed() bool { return p.armed.Load() }
