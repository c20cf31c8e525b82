// Package sched implements the sched stressor: applies a requested
// scheduler policy to the worker process, then spins, exercising
// internal/schedpolicy end to end.
package sched

import (
	"os"
	"time"

	"github.com/stressgo/stressgo/internal/registry"
	"github.com/stressgo/stressgo/internal/schedpolicy"
)

// Descriptor registers the sched stressor under ClassScheduler.
var Descriptor = registry.Descriptor{
	Name:  "sched",
	Class: registry.ClassScheduler,
	Entry: entry,
	Metrics: []registry.MetricDeclaration{
		{ID: metricOpsPerSec, Label: "sched_ops_per_sec", Combine: registry.CombineArithmeticMean},
	},
}

const metricOpsPerSec = 0

func entry(args registry.EntryArgs) (registry.ExitStatus, error) {
	policy := schedpolicy.PolicyOther
	aggressive := false
	if args.Settings != nil {
		if v, ok := args.Settings.GetString(args.Name, "policy"); ok {
			policy = parsePolicy(v)
		}
		aggressive = args.Settings.GetBool(args.Name, "aggressive")
	}

	if err := schedpolicy.Apply(schedpolicy.Request{
		PID:        os.Getpid(),
		Policy:     policy,
		Undefined:  true,
		Aggressive: aggressive,
	}); err != nil {
		return registry.StatusFailure, err
	}

	start := time.Now()
	var ops uint64
	for args.Continue() {
		busyLoop()
		ops++
		args.BogoInc(1)
		if args.MaxOps > 0 && ops >= args.MaxOps {
			break
		}
	}
	elapsed := time.Since(start).Seconds()
	if elapsed > 0 {
		args.MetricSet(metricOpsPerSec, float64(ops)/elapsed, registry.CombineArithmeticMean, "sched_ops_per_sec")
	}
	return registry.StatusSuccess, nil
}

func parsePolicy(s string) schedpolicy.Policy {
	switch s {
	case "fifo":
		return schedpolicy.PolicyFIFO
	case "rr":
		return schedpolicy.PolicyRR
	case "batch":
		return schedpolicy.PolicyBatch
	case "idle":
		return schedpolicy.PolicyIdle
	default:
		return schedpolicy.PolicyOther
	}
}

func busyLoop() {
	var x uint64 = 0x2545F4914F6CDD1D
	for i := 0; i < 512; i++ {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
	}
	_ = x
}
