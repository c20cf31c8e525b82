package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stressgo/stressgo/internal/registry"
)

func TestEntryAppliesPolicyAndSpins(t *testing.T) {
	var bogo uint64
	calls := 0
	status, err := entry(registry.EntryArgs{
		Name:      "sched",
		MaxOps:    3,
		BogoInc:   func(d uint64) { bogo += d },
		MetricSet: func(int, float64, registry.MetricCombine, string) {},
		Continue:  func() bool { calls++; return calls <= 100 },
	})
	require.NoError(t, err)
	assert.Equal(t, registry.StatusSuccess, status)
	assert.Equal(t, uint64(3), bogo)
}

func TestParsePolicyKnownNames(t *testing.T) {
	assert.Equal(t, "FIFO", parsePolicy("fifo").String())
	assert.Equal(t, "RR", parsePolicy("rr").String())
	assert.Equal(t, "BATCH", parsePolicy("batch").String())
	assert.Equal(t, "IDLE", parsePolicy("idle").String())
	assert.Equal(t, "OTHER", parsePolicy("bogus").String())
}
