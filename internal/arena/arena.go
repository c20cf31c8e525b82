package arena

import (
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/stressgo/stressgo/internal/lifecycle"
)

// backing is the platform-specific shared region: a file descriptor plus
// the mapped bytes on Linux, or a plain heap buffer elsewhere. See
// arena_linux.go / arena_fallback.go.
type backing interface {
	bytes() []byte
	fd() (uintptr, bool)
	close() error
}

// Arena is the shared-memory region described by spec §4.C. All
// cross-process communication between the supervisor and its workers flows
// through this struct; each slot is owned by exactly one writer.
type Arena struct {
	layout Layout
	back   backing
}

// Open creates a new Arena sized for n workers, backed by shared memory
// where the platform supports it (arena_linux.go) or an in-process buffer
// otherwise (arena_fallback.go).
func Open(n int) (*Arena, error) {
	layout := NewLayout(n)
	b, err := newBacking(layout.Size)
	if err != nil {
		return nil, fmt.Errorf("arena: open: %w", err)
	}
	return &Arena{layout: layout, back: b}, nil
}

// Close releases the underlying shared memory.
func (a *Arena) Close() error {
	return a.back.close()
}

// FD returns the file descriptor backing the arena and whether one exists
// (false on the non-Linux fallback). Callers pass this through
// exec.Cmd.ExtraFiles when spawning workers.
func (a *Arena) FD() (uintptr, bool) {
	return a.back.fd()
}

// Layout returns the computed byte layout for this arena.
func (a *Arena) Layout() Layout { return a.layout }

func (a *Arena) bytes() []byte { return a.back.bytes() }

func (a *Arena) ptr(offset int) unsafe.Pointer {
	return unsafe.Pointer(&a.bytes()[offset])
}

// --- Global flags ---

// ContinueFlag reports the run's continue flag using acquire semantics, as
// required by spec §4.C.
func (a *Arena) ContinueFlag() bool {
	p := (*uint32)(a.ptr(a.layout.GlobalFlagsOffset))
	return atomic.LoadUint32(p) != 0
}

// SetContinueFlag stores the continue flag with release semantics. Go's
// atomic package provides sequential consistency for all processors that
// observe the mapping through the same memory, which subsumes the
// release/acquire requirement.
func (a *Arena) SetContinueFlag(v bool) {
	p := (*uint32)(a.ptr(a.layout.GlobalFlagsOffset))
	var n uint32
	if v {
		n = 1
	}
	atomic.StoreUint32(p, n)
}

// ForceKilled reports whether the supervisor has had to escalate to
// SIGKILL against any worker this run.
func (a *Arena) ForceKilled() bool {
	p := (*uint32)(a.ptr(a.layout.GlobalFlagsOffset + 4))
	return atomic.LoadUint32(p) != 0
}

// SetForceKilled marks the run as having force-killed a worker. Write-once
// by the supervisor; later calls are idempotent.
func (a *Arena) SetForceKilled() {
	p := (*uint32)(a.ptr(a.layout.GlobalFlagsOffset + 4))
	atomic.StoreUint32(p, 1)
}

// AbortCount returns the number of workers the termination coordinator has
// noted as force-killed (Coordinator.NoteForceKilled).
func (a *Arena) AbortCount() uint64 {
	p := (*uint64)(a.ptr(a.layout.GlobalFlagsOffset + 8))
	return atomic.LoadUint64(p)
}

// IncAbortCount bumps the abort counter by one.
func (a *Arena) IncAbortCount() uint64 {
	p := (*uint64)(a.ptr(a.layout.GlobalFlagsOffset + 8))
	return atomic.AddUint64(p, 1)
}

// --- Worker state ---

// WorkerState returns worker i's lifecycle state.
func (a *Arena) WorkerState(i int) lifecycle.State {
	p := (*uint64)(a.ptr(a.layout.StateOffset(i)))
	return lifecycle.State(atomic.LoadUint64(p))
}

// SetWorkerState unconditionally stores worker i's lifecycle state.
func (a *Arena) SetWorkerState(i int, s lifecycle.State) {
	p := (*uint64)(a.ptr(a.layout.StateOffset(i)))
	atomic.StoreUint64(p, uint64(s))
}

// TryWorkerTransition attempts a from→to CAS on worker i's state cell.
func (a *Arena) TryWorkerTransition(i int, from, to lifecycle.State) bool {
	p := (*uint64)(a.ptr(a.layout.StateOffset(i)))
	return atomic.CompareAndSwapUint64(p, uint64(from), uint64(to))
}

// AllReached reports whether every worker slot in [0,n) has a lifecycle
// state at or beyond at, used by the supervisor to decide when every
// sibling has entered SYNC_WAIT and the synchronized-start barrier can be
// released (spec §4.D). State values are monotonic along the happy path,
// so ">= at" is sufficient; StateInit is the only state below SyncWait.
func (a *Arena) AllReached(n int, at lifecycle.State) bool {
	for i := 0; i < n; i++ {
		if a.WorkerState(i) < at {
			return false
		}
	}
	return true
}

// --- Synchronized-start barrier ---
//
// The barrier lives in the lock region (layout.go): a single write-once
// release flag. Workers publish SYNC_WAIT then call BarrierWait; the
// supervisor polls AllReached and calls ReleaseBarrier once every sibling
// has arrived (or the run is already being told to stop), unblocking every
// parked worker at once (spec §4.D: "blocks on a cross-process
// barrier/countdown until all siblings have also entered SYNC_WAIT. The
// supervisor releases the barrier.").

// barrierSpinIterations bounds how long BarrierWait busy-spins via
// runtime.Gosched before falling back to sleeping between checks.
const barrierSpinIterations = 1000

func (a *Arena) barrierReleasedPtr() *uint32 {
	return (*uint32)(a.ptr(a.layout.LockRegionOffset))
}

// ReleaseBarrier unblocks every worker parked in BarrierWait. Write-once by
// the supervisor; later calls are idempotent.
func (a *Arena) ReleaseBarrier() {
	atomic.StoreUint32(a.barrierReleasedPtr(), 1)
}

// BarrierReleased reports whether the supervisor has released the
// synchronized-start barrier.
func (a *Arena) BarrierReleased() bool {
	return atomic.LoadUint32(a.barrierReleasedPtr()) != 0
}

// BarrierWait blocks until the supervisor releases the barrier, or the
// run's continue flag drops before that happens (e.g. the wall-clock
// budget expires while a sibling is still stuck in INIT) — a worker must
// never park here forever. It spins briefly via runtime.Gosched, then
// falls back to a short sleep between checks.
func (a *Arena) BarrierWait() {
	for i := 0; !a.BarrierReleased(); i++ {
		if !a.ContinueFlag() {
			return
		}
		if i < barrierSpinIterations {
			runtime.Gosched()
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

// --- Bogo counters ---

// BogoCount returns worker i's current bogo-op counter.
func (a *Arena) BogoCount(i int) uint64 {
	p := (*uint64)(a.ptr(a.layout.CounterOffset(i)))
	return atomic.LoadUint64(p)
}

// BogoInc increments worker i's bogo-op counter by delta (relaxed add, the
// hot path called once per unit of stressor work).
func (a *Arena) BogoInc(i int, delta uint64) uint64 {
	p := (*uint64)(a.ptr(a.layout.CounterOffset(i)))
	return atomic.AddUint64(p, delta)
}

// BogoSet stores worker i's bogo-op counter to an absolute value.
func (a *Arena) BogoSet(i int, n uint64) {
	p := (*uint64)(a.ptr(a.layout.CounterOffset(i)))
	atomic.StoreUint64(p, n)
}

// SignalCount returns worker i's counter for the given signal slot (0 =
// SIGBUS, 1 = SIGSEGV; spec §4.J).
func (a *Arena) SignalCount(i, slot int) uint32 {
	p := (*uint32)(a.ptr(a.layout.CounterOffset(i) + 8 + slot*4))
	return atomic.LoadUint32(p)
}

// IncSignalCount bumps worker i's counter for the given signal slot. Must
// be async-signal-safe: a single relaxed atomic add, as required by spec
// §4.J.
func (a *Arena) IncSignalCount(i, slot int) uint32 {
	p := (*uint32)(a.ptr(a.layout.CounterOffset(i) + 8 + slot*4))
	return atomic.AddUint32(p, 1)
}

// --- Metrics ---

// Combine identifies how per-instance metric values are aggregated into a
// single value across all instances of a stressor (spec §4.H).
type Combine uint8

const (
	CombineSum Combine = iota
	CombineArithmeticMean
	CombineHarmonicMean
	CombineMin
	CombineMax
)

// MetricSlot is the shared-memory representation of one published metric.
type MetricSlot struct {
	Value    float64
	Combine  Combine
	LabelIdx uint16
}

// MetricSet publishes metric id's value and combine rule for worker i. K is
// bounded by MaxMetricsPerWorker; id must be in [0, MaxMetricsPerWorker).
func (a *Arena) MetricSet(i, id int, value float64, combine Combine, labelIdx uint16) {
	off := a.layout.MetricOffset(i, id)
	vp := (*uint64)(a.ptr(off))
	atomic.StoreUint64(vp, math.Float64bits(value))
	cp := (*uint32)(a.ptr(off + 8))
	atomic.StoreUint32(cp, uint32(combine)|uint32(labelIdx)<<8)
}

// MetricGet reads worker i's metric id.
func (a *Arena) MetricGet(i, id int) MetricSlot {
	off := a.layout.MetricOffset(i, id)
	vp := (*uint64)(a.ptr(off))
	value := math.Float64frombits(atomic.LoadUint64(vp))
	cp := (*uint32)(a.ptr(off + 8))
	packed := atomic.LoadUint32(cp)
	return MetricSlot{
		Value:    value,
		Combine:  Combine(packed & 0xff),
		LabelIdx: uint16(packed >> 8),
	}
}
