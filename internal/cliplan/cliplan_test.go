package cliplan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stressgo/stressgo/internal/schedpolicy"
)

func TestBuildAppliesOptions(t *testing.T) {
	plan, err := Build(
		[]StressorRequest{{Name: "cpu", Instances: 4}},
		nil,
		WithTimeout(30*time.Second),
		WithMaxOps(1000),
		WithAbortThreshold(2),
		WithAggressive(true),
	)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, plan.Timeout)
	assert.Equal(t, uint64(1000), plan.MaxOps)
	assert.Equal(t, uint64(2), plan.AbortThreshold)
	assert.True(t, plan.Aggressive)
	assert.NotNil(t, plan.Settings)
}

func TestBuildNilOptionSkipped(t *testing.T) {
	plan, err := Build(nil, nil, nil, WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Second, plan.Timeout)
}

func TestWithTimeoutRejectsNegative(t *testing.T) {
	_, err := Build(nil, nil, WithTimeout(-time.Second))
	assert.Error(t, err)
}

func TestParseArgsBuildsPlan(t *testing.T) {
	plan, err := ParseArgs("stressgo", []string{"--cpu", "4", "--vm", "2", "--timeout", "30s", "--max-ops", "500"})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, plan.Timeout)
	assert.Equal(t, uint64(500), plan.MaxOps)
	require.Len(t, plan.Stressors, 2)
}

func TestParseArgsRejectsBadTimeout(t *testing.T) {
	_, err := ParseArgs("stressgo", []string{"--timeout", "notatime"})
	assert.Error(t, err)
}

func TestParseArgsNoStressorsIsEmptyPlan(t *testing.T) {
	plan, err := ParseArgs("stressgo", nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Stressors)
}

func TestParseArgsDefaultSchedIsUndefinedOther(t *testing.T) {
	plan, err := ParseArgs("stressgo", nil)
	require.NoError(t, err)
	assert.Equal(t, schedpolicy.PolicyUndefined, plan.Sched.Policy)
	assert.True(t, plan.Sched.Undefined)
}

func TestParseArgsSchedFIFOWithPriority(t *testing.T) {
	plan, err := ParseArgs("stressgo", []string{"--sched", "fifo", "--sched-prio", "80"})
	require.NoError(t, err)
	assert.Equal(t, schedpolicy.PolicyFIFO, plan.Sched.Policy)
	assert.False(t, plan.Sched.Undefined)
	assert.Equal(t, 80, plan.Sched.Priority)
}

func TestParseArgsSchedDeadlineParams(t *testing.T) {
	plan, err := ParseArgs("stressgo", []string{
		"--sched", "deadline",
		"--sched-period", "10ms",
		"--sched-runtime", "2ms",
		"--sched-deadline", "10ms",
	})
	require.NoError(t, err)
	assert.Equal(t, schedpolicy.PolicyDeadline, plan.Sched.Policy)
	assert.Equal(t, uint64(10*time.Millisecond), plan.Sched.Deadline.Period)
	assert.Equal(t, uint64(2*time.Millisecond), plan.Sched.Deadline.Runtime)
	assert.Equal(t, uint64(10*time.Millisecond), plan.Sched.Deadline.Deadline)
}

func TestParseArgsRejectsUnknownSchedPolicy(t *testing.T) {
	_, err := ParseArgs("stressgo", []string{"--sched", "bogus"})
	assert.Error(t, err)
}

func TestParseArgsMaximizeMinimizeLogFileSyslog(t *testing.T) {
	plan, err := ParseArgs("stressgo", []string{
		"--maximize", "--log-file", "/tmp/stressgo-test.log", "--syslog",
	})
	require.NoError(t, err)
	assert.True(t, plan.Maximize)
	assert.False(t, plan.Minimize)
	assert.Equal(t, "/tmp/stressgo-test.log", plan.LogFile)
	assert.True(t, plan.Syslog)
}
