package sig

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stressgo/stressgo/internal/arena"
	"github.com/stressgo/stressgo/internal/lifecycle"
)

func TestInstallerDispatchesToMultipleHandlers(t *testing.T) {
	in := NewInstaller()
	var got1, got2 bool
	in.InstallSighandler(syscall.SIGUSR1, func(os.Signal) { got1 = true })
	in.InstallSighandler(syscall.SIGUSR1, func(os.Signal) { got2 = true })
	in.Start()
	defer in.Stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	assert.Eventually(t, func() bool { return got1 && got2 }, time.Second, time.Millisecond)
}

func TestFatalRecoveryTransitionsToRecover(t *testing.T) {
	a, err := arena.Open(1)
	require.NoError(t, err)
	defer a.Close()

	cell := lifecycle.NewCell()
	cell.Store(lifecycle.StateRun)
	safe := &lifecycle.SafePoint{}

	fr := NewFatalRecovery(a, 0)
	handler := fr.Handle(safe, cell)
	handler(syscall.SIGSEGV)

	assert.Equal(t, lifecycle.StateRecover, cell.Load())
	assert.True(t, safe.Armed())
	assert.Equal(t, uint32(1), a.SignalCount(0, 1))
}

func TestFatalRecoveryIgnoresUnrelatedSignals(t *testing.T) {
	a, err := arena.Open(1)
	require.NoError(t, err)
	defer a.Close()

	cell := lifecycle.NewCell()
	cell.Store(lifecycle.StateRun)
	safe := &lifecycle.SafePoint{}

	fr := NewFatalRecovery(a, 0)
	handler := fr.Handle(safe, cell)
	handler(syscall.SIGUSR2)

	assert.Equal(t, lifecycle.StateRun, cell.Load())
	assert.False(t, safe.Armed())
}

func TestSlotOfMapsKnownFatalSignals(t *testing.T) {
	slot, ok := slotOf(syscall.SIGBUS)
	assert.True(t, ok)
	assert.Equal(t, 0, slot)

	slot, ok = slotOf(syscall.SIGSEGV)
	assert.True(t, ok)
	assert.Equal(t, 1, slot)

	_, ok = slotOf(syscall.SIGUSR1)
	assert.False(t, ok)
}
