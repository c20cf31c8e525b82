package procsup

import (
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardPIDRefusesInitAndSelf(t *testing.T) {
	assert.True(t, guardPID(1))
	assert.True(t, guardPID(0))
	assert.True(t, guardPID(os.Getpid()))
	assert.False(t, guardPID(os.Getpid()+1))
}

func TestKillPIDNoopsOnProtectedPID(t *testing.T) {
	assert.NoError(t, KillPID(1))
	assert.NoError(t, KillPID(os.Getpid()))
}

func TestIsRetryableSyscallErrors(t *testing.T) {
	assert.True(t, isRetryable(syscall.EAGAIN))
	assert.True(t, isRetryable(syscall.EINTR))
	assert.False(t, isRetryable(syscall.ENOENT))
}

func TestKillAndWaitReapsRealChild(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a real subprocess")
	}
	cmd := exec.Command("sleep", "5")
	require.NoError(t, cmd.Start())
	h := &Handle{PID: cmd.Process.Pid, cmd: cmd}

	status, err := KillAndWait(h, syscall.SIGKILL, func() bool { return true })
	require.NoError(t, err)
	assert.NotEqual(t, 0, status)
}

func TestSpawnWorkerRetriesAreBounded(t *testing.T) {
	assert.LessOrEqual(t, maxSpawnAttempts, 10)
}

func TestKillAndWaitManyWorstStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns real subprocesses")
	}
	var handles []*Handle
	for i := 0; i < 2; i++ {
		cmd := exec.Command("sleep", "5")
		require.NoError(t, cmd.Start())
		handles = append(handles, &Handle{PID: cmd.Process.Pid, cmd: cmd})
	}

	worst, err := KillAndWaitMany(handles, syscall.SIGKILL, func() bool { return true })
	require.NoError(t, err)
	assert.Greater(t, worst, 0)
}

func TestSpawnLimiterAllowsBurst(t *testing.T) {
	_, ok := spawnLimiter.Allow("test-category")
	assert.True(t, ok)
	_ = time.Millisecond
}
