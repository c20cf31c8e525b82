package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stressgo/stressgo/internal/arena"
)

func TestCombineSum(t *testing.T) {
	assert.Equal(t, 6.0, Combine(arena.CombineSum, []float64{1, 2, 3}))
}

func TestCombineArithmeticMean(t *testing.T) {
	assert.Equal(t, 2.0, Combine(arena.CombineArithmeticMean, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, Combine(arena.CombineArithmeticMean, nil))
}

func TestCombineHarmonicMeanSkipsZeros(t *testing.T) {
	got := Combine(arena.CombineHarmonicMean, []float64{0, 2, 4})
	assert.InDelta(t, 2*2*4/(2.0+4.0), got, 1e-9)
}

func TestCombineHarmonicMeanAllZero(t *testing.T) {
	assert.Equal(t, 0.0, Combine(arena.CombineHarmonicMean, []float64{0, 0}))
}

func TestCombineMinMax(t *testing.T) {
	assert.Equal(t, 1.0, Combine(arena.CombineMin, []float64{3, 1, 2}))
	assert.Equal(t, 3.0, Combine(arena.CombineMax, []float64{3, 1, 2}))
}

func TestRate(t *testing.T) {
	assert.Equal(t, 10.0, Rate(100, 10))
	assert.Equal(t, 0.0, Rate(100, 0))
}

func TestAggregateSumsBogoCounts(t *testing.T) {
	a, err := arena.Open(3)
	require.NoError(t, err)
	defer a.Close()

	a.BogoSet(0, 10)
	a.BogoSet(1, 20)
	a.BogoSet(2, 30)

	report := Aggregate(a, "cpu", 0, 3, 5, nil)
	assert.Equal(t, uint64(60), report.BogoTotal)
	assert.Equal(t, 12.0, report.Rate())
}

func TestWriteTableProducesOutput(t *testing.T) {
	var buf bytes.Buffer
	reports := []StressorReport{
		{Name: "cpu", Instances: 2, BogoTotal: 100, ElapsedSecs: 10},
	}
	err := WriteTable(&buf, reports)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "cpu")
}
