// Package ipc implements the ipc stressor: a producer/consumer pair
// connected by an OS pipe, exercising cross-goroutine message passing; both
// ends of the pipe stay inside the worker process.
package ipc

import (
	"os"
	"time"

	"github.com/stressgo/stressgo/internal/registry"
)

// Descriptor registers the ipc stressor under ClassIPC.
var Descriptor = registry.Descriptor{
	Name:  "ipc",
	Class: registry.ClassIPC,
	Entry: entry,
	Metrics: []registry.MetricDeclaration{
		{ID: metricMsgsPerSec, Label: "ipc_msgs_per_sec", Combine: registry.CombineArithmeticMean},
	},
}

const (
	metricMsgsPerSec = 0
	msgSize          = 4096
)

func entry(args registry.EntryArgs) (registry.ExitStatus, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return registry.StatusNoResource, err
	}
	defer r.Close()
	defer w.Close()

	msg := make([]byte, msgSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, msgSize)
		for {
			if _, err := r.Read(buf); err != nil {
				return
			}
		}
	}()

	start := time.Now()
	var ops uint64
	for args.Continue() {
		if _, err := w.Write(msg); err != nil {
			return registry.StatusFailure, err
		}
		ops++
		args.BogoInc(1)
		if args.MaxOps > 0 && ops >= args.MaxOps {
			break
		}
	}
	w.Close()
	<-done

	elapsed := time.Since(start).Seconds()
	if elapsed > 0 {
		args.MetricSet(metricMsgsPerSec, float64(ops)/elapsed, registry.CombineArithmeticMean, "ipc_msgs_per_sec")
	}
	return registry.StatusSuccess, nil
}
