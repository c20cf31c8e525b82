// Package cpu implements the cpu stressor: a tight arithmetic loop that
// burns CPU time and reports a bogo-ops-per-second style throughput
// metric, selectable among a small set of methods.
package cpu

import (
	"math"
	"time"

	"github.com/stressgo/stressgo/internal/registry"
)

// Descriptor registers the cpu stressor under ClassCPU.
var Descriptor = registry.Descriptor{
	Name:  "cpu",
	Class: registry.ClassCPU,
	Entry: entry,
	Metrics: []registry.MetricDeclaration{
		{ID: metricOpsPerSec, Label: "cpu_ops_per_sec", Combine: registry.CombineArithmeticMean},
	},
}

const metricOpsPerSec = 0

func entry(args registry.EntryArgs) (registry.ExitStatus, error) {
	method := "matrixprod"
	if args.Settings != nil {
		if v, ok := args.Settings.GetString(args.Name, "method"); ok {
			method = v
		}
	}
	fn := methods[method]
	if fn == nil {
		fn = methods["matrixprod"]
	}

	start := time.Now()
	var ops uint64
	for args.Continue() {
		fn()
		ops++
		args.BogoInc(1)
		if args.MaxOps > 0 && ops >= args.MaxOps {
			break
		}
	}
	elapsed := time.Since(start).Seconds()
	if elapsed > 0 {
		args.MetricSet(metricOpsPerSec, float64(ops)/elapsed, registry.CombineArithmeticMean, "cpu_ops_per_sec")
	}
	return registry.StatusSuccess, nil
}

var methods = map[string]func(){
	"matrixprod": matrixProd,
	"fft":        fftApprox,
	"int":        intChurn,
}

// matrixProd multiplies two small fixed matrices repeatedly, the classic
// "burn the FPU" inner loop.
func matrixProd() {
	const n = 8
	var a, b, c [n][n]float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a[i][j] = float64(i*n + j)
			b[i][j] = float64(j*n + i)
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += a[i][k] * b[k][j]
			}
			c[i][j] = sum
		}
	}
	_ = c
}

// fftApprox approximates a small DFT's inner sum-of-products loop without
// pulling in an FFT library, since this is a synthetic load generator, not
// a correctness-sensitive signal-processing component.
func fftApprox() {
	const n = 32
	var real, imag float64
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			theta := 2 * math.Pi * float64(k*j) / float64(n)
			real += math.Cos(theta)
			imag += math.Sin(theta)
		}
	}
	_ = real + imag
}

func intChurn() {
	var x uint64 = 0x9e3779b97f4a7c15
	for i := 0; i < 256; i++ {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
	}
	_ = x
}
