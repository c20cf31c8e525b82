package arena

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stressgo/stressgo/internal/lifecycle"
)

func TestLayoutOffsetsDoNotOverlap(t *testing.T) {
	l := NewLayout(3)
	assert.Less(t, l.GlobalFlagsOffset, l.WorkerStateOffset)
	assert.Less(t, l.WorkerStateOffset, l.WorkerCounterOffset)
	assert.Less(t, l.WorkerCounterOffset, l.WorkerMetricOffset)
	assert.Less(t, l.WorkerMetricOffset, l.LockRegionOffset)
	assert.Less(t, l.LockRegionOffset, l.Size)

	assert.Equal(t, l.StateOffset(0)+workerStateSize, l.StateOffset(1))
	assert.Equal(t, l.MetricOffset(0, 1)+metricSlotSize, l.MetricOffset(0, 2))
	assert.Equal(t, l.MetricOffset(0, MaxMetricsPerWorker), l.MetricOffset(1, 0))
}

func TestArenaContinueFlag(t *testing.T) {
	a, err := Open(2)
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.ContinueFlag())
	a.SetContinueFlag(true)
	assert.True(t, a.ContinueFlag())
	a.SetContinueFlag(false)
	assert.False(t, a.ContinueFlag())
}

func TestArenaForceKilledWriteOnce(t *testing.T) {
	a, err := Open(1)
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.ForceKilled())
	a.SetForceKilled()
	assert.True(t, a.ForceKilled())
	a.SetForceKilled()
	assert.True(t, a.ForceKilled())
}

func TestArenaWorkerState(t *testing.T) {
	a, err := Open(2)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, lifecycle.State(0), a.WorkerState(0))
	a.SetWorkerState(0, lifecycle.StateRun)
	assert.Equal(t, lifecycle.StateRun, a.WorkerState(0))
	// worker 1's slot is independent
	assert.Equal(t, lifecycle.State(0), a.WorkerState(1))

	ok := a.TryWorkerTransition(0, lifecycle.StateRun, lifecycle.StateStop)
	assert.True(t, ok)
	assert.Equal(t, lifecycle.StateStop, a.WorkerState(0))
}

func TestArenaBogoCounters(t *testing.T) {
	a, err := Open(2)
	require.NoError(t, err)
	defer a.Close()

	a.BogoInc(0, 5)
	a.BogoInc(0, 3)
	assert.Equal(t, uint64(8), a.BogoCount(0))

	a.BogoSet(1, 42)
	assert.Equal(t, uint64(42), a.BogoCount(1))
	// independent slots
	assert.Equal(t, uint64(8), a.BogoCount(0))
}

func TestArenaSignalCounters(t *testing.T) {
	a, err := Open(1)
	require.NoError(t, err)
	defer a.Close()

	a.IncSignalCount(0, 0)
	a.IncSignalCount(0, 0)
	a.IncSignalCount(0, 1)
	assert.Equal(t, uint32(2), a.SignalCount(0, 0))
	assert.Equal(t, uint32(1), a.SignalCount(0, 1))
}

func TestArenaMetrics(t *testing.T) {
	a, err := Open(2)
	require.NoError(t, err)
	defer a.Close()

	a.MetricSet(0, 3, 12.5, CombineArithmeticMean, 7)
	got := a.MetricGet(0, 3)
	assert.Equal(t, 12.5, got.Value)
	assert.Equal(t, CombineArithmeticMean, got.Combine)
	assert.Equal(t, uint16(7), got.LabelIdx)

	// a different worker's same-id slot is independent
	untouched := a.MetricGet(1, 3)
	assert.Equal(t, float64(0), untouched.Value)
}

func TestArenaAbortCount(t *testing.T) {
	a, err := Open(1)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, uint64(0), a.AbortCount())
	a.IncAbortCount()
	a.IncAbortCount()
	assert.Equal(t, uint64(2), a.AbortCount())
}

func TestArenaAllReached(t *testing.T) {
	a, err := Open(3)
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.AllReached(3, lifecycle.StateSyncWait))

	a.SetWorkerState(0, lifecycle.StateSyncWait)
	a.SetWorkerState(1, lifecycle.StateSyncWait)
	assert.False(t, a.AllReached(3, lifecycle.StateSyncWait))

	a.SetWorkerState(2, lifecycle.StateRun)
	assert.True(t, a.AllReached(3, lifecycle.StateSyncWait))
}

func TestArenaBarrierReleasesWaiters(t *testing.T) {
	a, err := Open(2)
	require.NoError(t, err)
	defer a.Close()
	a.SetContinueFlag(true)

	assert.False(t, a.BarrierReleased())

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			a.BarrierWait()
			done <- struct{}{}
		}()
	}

	select {
	case <-done:
		t.Fatal("BarrierWait returned before ReleaseBarrier was called")
	case <-time.After(20 * time.Millisecond):
	}

	a.ReleaseBarrier()
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("BarrierWait did not unblock after ReleaseBarrier")
		}
	}
	assert.True(t, a.BarrierReleased())
}

func TestArenaBarrierWaitUnblocksWhenContinueDrops(t *testing.T) {
	a, err := Open(1)
	require.NoError(t, err)
	defer a.Close()
	a.SetContinueFlag(true)

	done := make(chan struct{})
	go func() {
		a.BarrierWait()
		close(done)
	}()

	a.SetContinueFlag(false)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BarrierWait did not unblock when continue flag dropped")
	}
}
