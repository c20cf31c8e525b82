// Package vm implements the vm stressor: repeatedly allocate, touch, and
// release a byte buffer to exercise the allocator and page fault path,
// optionally verifying a fixed pattern round-trips.
package vm

import (
	"time"

	"github.com/stressgo/stressgo/internal/errs"
	"github.com/stressgo/stressgo/internal/registry"
)

// Descriptor registers the vm stressor under ClassVM.
var Descriptor = registry.Descriptor{
	Name:         "vm",
	Class:        registry.ClassVM,
	Entry:        entry,
	Verification: registry.VerificationOptional,
	Metrics: []registry.MetricDeclaration{
		{ID: metricBytesPerSec, Label: "vm_bytes_per_sec", Combine: registry.CombineSum},
	},
}

const (
	metricBytesPerSec = 0
	minBufSize        = 64 << 10
	defaultBufSize    = 4 << 20
	maxBufSize        = 256 << 20
	fillByte          = 0xA5
)

// resolveBufSize applies the auto-scaling rule for the "bytes" option
// (spec §6's --maximize/--minimize): an explicit setting always wins,
// otherwise maximize/minimize pick the largest/smallest reasonable value
// and the stressor's own default otherwise.
func resolveBufSize(args registry.EntryArgs) int {
	bufSize := defaultBufSize
	switch {
	case args.Maximize:
		bufSize = maxBufSize
	case args.Minimize:
		bufSize = minBufSize
	}
	if args.Settings != nil {
		if n, ok := args.Settings.GetUint(args.Name, "bytes"); ok && n > 0 {
			bufSize = int(n)
		}
	}
	return bufSize
}

func entry(args registry.EntryArgs) (registry.ExitStatus, error) {
	bufSize := resolveBufSize(args)
	// Verification is OPTIONAL for this stressor (spec §3): it only runs
	// when the run was started with --verify.
	verify := args.Verify

	start := time.Now()
	var ops uint64
	var totalBytes uint64
	for args.Continue() {
		buf := make([]byte, bufSize)
		for i := range buf {
			buf[i] = fillByte
		}
		if verify {
			if err := verifyPattern(buf); err != nil {
				return registry.StatusFailure, err
			}
		}
		totalBytes += uint64(bufSize)
		ops++
		args.BogoInc(1)
		if args.MaxOps > 0 && ops >= args.MaxOps {
			break
		}
	}
	elapsed := time.Since(start).Seconds()
	if elapsed > 0 {
		args.MetricSet(metricBytesPerSec, float64(totalBytes)/elapsed, registry.CombineSum, "vm_bytes_per_sec")
	}
	return registry.StatusSuccess, nil
}

func verifyPattern(buf []byte) error {
	for i, b := range buf {
		if b != fillByte {
			return &errs.AssertionFailure{Stressor: "vm", Detail: "pattern mismatch at offset"}
		}
		_ = i
	}
	return nil
}
