// Package arena implements the shared-memory region workers use to publish
// lifecycle state, bogo-op counters, and named metrics back to the
// supervisor (spec §4.C).
//
// On Linux, the region is backed by memfd_create + mmap(MAP_SHARED): the
// resulting file descriptor is inherited by re-exec'd worker processes via
// exec.Cmd.ExtraFiles, the idiomatic Go substitute for the C original's
// pre-fork anonymous mmap (Go has no raw fork to inherit mappings through).
// Non-Linux builds fall back to an in-process buffer sufficient for tests
// and single-process embedding; see arena_fallback.go.
package arena

const cacheLine = 64

// MaxMetricsPerWorker bounds K, the number of named metric slots reserved
// per worker instance.
const MaxMetricsPerWorker = 16

// globalFlagsSize covers continue (4 bytes), force_killed (4 bytes), and
// abort_count (8 bytes), padded to a cache line.
const globalFlagsSize = cacheLine

// workerStateSize is one cache line per worker, matching lifecycle.Cell's
// own padding.
const workerStateSize = cacheLine

// workerCounterSize is one cache line per worker: an 8-byte bogo counter
// plus SIGBUS/SIGSEGV signal counters (4 bytes each), padded out.
const workerCounterSize = cacheLine

// metricSlotSize covers { value float64; combine uint8; labelIdx uint16 },
// rounded up to 16 bytes for alignment.
const metricSlotSize = 16

// lockRegionSize reserves one cache line for the synchronized-start
// barrier's release flag (Arena.ReleaseBarrier/BarrierWait/BarrierReleased)
// plus a spare cache line for future cross-process coordination.
const lockRegionSize = cacheLine * 2

// Layout describes the byte offsets of every region within the arena for a
// given worker count, computed once at startup from the total worker
// count (spec §4.C).
type Layout struct {
	Workers int

	GlobalFlagsOffset   int
	WorkerStateOffset   int
	WorkerCounterOffset int
	WorkerMetricOffset  int
	LockRegionOffset    int

	Size int
}

// NewLayout computes a Layout for n workers.
func NewLayout(n int) Layout {
	if n < 0 {
		n = 0
	}
	l := Layout{Workers: n}

	off := 0
	l.GlobalFlagsOffset = off
	off += globalFlagsSize

	l.WorkerStateOffset = off
	off += workerStateSize * n

	l.WorkerCounterOffset = off
	off += workerCounterSize * n

	l.WorkerMetricOffset = off
	off += metricSlotSize * MaxMetricsPerWorker * n

	l.LockRegionOffset = off
	off += lockRegionSize

	l.Size = off
	return l
}

// StateOffset returns the byte offset of worker i's state cache line.
func (l Layout) StateOffset(i int) int {
	return l.WorkerStateOffset + i*workerStateSize
}

// CounterOffset returns the byte offset of worker i's counter cache line.
func (l Layout) CounterOffset(i int) int {
	return l.WorkerCounterOffset + i*workerCounterSize
}

// MetricOffset returns the byte offset of worker i's k-th metric slot.
func (l Layout) MetricOffset(i, k int) int {
	return l.WorkerMetricOffset + (i*MaxMetricsPerWorker+k)*metricSlotSize
}
