package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stressgo/stressgo/internal/settings"

	"github.com/stressgo/stressgo/internal/registry"
)

func TestEntryAllocatesAndVerifies(t *testing.T) {
	store := settings.NewStore()
	store.Set("vm", "bytes", settings.TagUint, settings.Value{Uint: 4096})

	var bogo uint64
	calls := 0
	status, err := entry(registry.EntryArgs{
		Name:      "vm",
		Settings:  store,
		MaxOps:    3,
		Verify:    true,
		BogoInc:   func(d uint64) { bogo += d },
		MetricSet: func(int, float64, registry.MetricCombine, string) {},
		Continue:  func() bool { calls++; return calls <= 100 },
	})
	require.NoError(t, err)
	assert.Equal(t, registry.StatusSuccess, status)
	assert.Equal(t, uint64(3), bogo)
}

func TestResolveBufSizeMaximizeMinimizeDefault(t *testing.T) {
	assert.Equal(t, defaultBufSize, resolveBufSize(registry.EntryArgs{Name: "vm"}))
	assert.Equal(t, maxBufSize, resolveBufSize(registry.EntryArgs{Name: "vm", Maximize: true}))
	assert.Equal(t, minBufSize, resolveBufSize(registry.EntryArgs{Name: "vm", Minimize: true}))

	store := settings.NewStore()
	store.Set("vm", "bytes", settings.TagUint, settings.Value{Uint: 1234})
	assert.Equal(t, 1234, resolveBufSize(registry.EntryArgs{Name: "vm", Maximize: true, Settings: store}))
}

func TestVerifyPatternDetectsCorruption(t *testing.T) {
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = fillByte
	}
	assert.NoError(t, verifyPattern(buf))

	buf[3] = 0
	assert.Error(t, verifyPattern(buf))
}
