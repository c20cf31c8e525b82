package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stressgo/stressgo/internal/arena"
	"github.com/stressgo/stressgo/internal/cliplan"
	"github.com/stressgo/stressgo/internal/metrics"
	"github.com/stressgo/stressgo/internal/registry"
)

func TestDeclaredMetricsTranslatesCombineRule(t *testing.T) {
	out := declaredMetrics([]registry.MetricDeclaration{
		{ID: 0, Label: "ops", Combine: registry.CombineSum},
		{ID: 1, Label: "rate", Combine: registry.CombineHarmonicMean},
	})
	assert.Equal(t, []metrics.NamedMetric{
		{ID: 0, Label: "ops", Combine: arena.CombineSum},
		{ID: 1, Label: "rate", Combine: arena.CombineHarmonicMean},
	}, out)
}

func TestDeclaredMetricsEmpty(t *testing.T) {
	out := declaredMetrics(nil)
	assert.Empty(t, out)
}

func TestRunWithNoStressorsReturnsEmptyResult(t *testing.T) {
	reg := registry.NewRegistry()
	s := New(reg, nil)
	plan, err := cliplan.Build(nil, nil)
	require.NoError(t, err)

	result, err := s.Run(context.Background(), plan)
	assert.NoError(t, err)
	assert.Empty(t, result.Reports)
}

func TestRunSkipsCapabilityGatedStressor(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register(registry.Descriptor{
		Name:       "needs-cap",
		Capability: "CAP_SYS_ADMIN",
		Entry:      func(registry.EntryArgs) (registry.ExitStatus, error) { return registry.StatusSuccess, nil },
	})
	denyAll := func(string) bool { return false }
	s := New(reg, denyAll)
	plan, err := cliplan.Build([]cliplan.StressorRequest{{Name: "needs-cap", Instances: 2}}, nil)
	require.NoError(t, err)

	result, err := s.Run(context.Background(), plan)
	assert.NoError(t, err)
	require.Len(t, result.Reports, 1)
	assert.True(t, result.Reports[0].Skipped)
	assert.NotEmpty(t, result.Reports[0].SkipReason)
	assert.Equal(t, registry.StatusNotImplemented, result.WorstExit)
}

func TestRunSkipsUnsupportedStressor(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register(registry.Descriptor{
		Name:                "no-kernel-support",
		Supported:           func() int { return -1 },
		UnimplementedReason: "requires a feature this kernel lacks",
		Entry:               func(registry.EntryArgs) (registry.ExitStatus, error) { return registry.StatusSuccess, nil },
	})
	s := New(reg, nil)
	plan, err := cliplan.Build([]cliplan.StressorRequest{{Name: "no-kernel-support", Instances: 3}}, nil)
	require.NoError(t, err)

	result, err := s.Run(context.Background(), plan)
	assert.NoError(t, err)
	require.Len(t, result.Reports, 1)
	assert.True(t, result.Reports[0].Skipped)
	assert.Equal(t, "requires a feature this kernel lacks", result.Reports[0].SkipReason)
	assert.Equal(t, registry.StatusNotImplemented, result.WorstExit)
}

func TestWorseOfPrecedence(t *testing.T) {
	assert.Equal(t, registry.StatusFailure, registry.WorseOf(registry.StatusFailure, registry.StatusNotImplemented))
	assert.Equal(t, registry.StatusNotImplemented, registry.WorseOf(registry.StatusNotImplemented, registry.StatusNoResource))
	assert.Equal(t, registry.StatusNoResource, registry.WorseOf(registry.StatusNoResource, registry.StatusSuccess))
	assert.Equal(t, registry.StatusFailure, registry.WorseOf(registry.StatusSuccess, registry.StatusFailure))
}
