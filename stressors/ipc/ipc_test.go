package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stressgo/stressgo/internal/registry"
)

func TestEntryExchangesMessages(t *testing.T) {
	var bogo uint64
	calls := 0
	status, err := entry(registry.EntryArgs{
		Name:      "ipc",
		MaxOps:    10,
		BogoInc:   func(d uint64) { bogo += d },
		MetricSet: func(int, float64, registry.MetricCombine, string) {},
		Continue:  func() bool { calls++; return calls <= 1000 },
	})
	require.NoError(t, err)
	assert.Equal(t, registry.StatusSuccess, status)
	assert.Equal(t, uint64(10), bogo)
}
