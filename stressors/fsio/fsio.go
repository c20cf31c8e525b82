// Package fsio implements the fsio stressor: repeated write/fsync/read
// cycles against a private temp file to exercise the filesystem and page
// cache.
package fsio

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/stressgo/stressgo/internal/errs"
	"github.com/stressgo/stressgo/internal/registry"
)

// Descriptor registers the fsio stressor under ClassIO.
var Descriptor = registry.Descriptor{
	Name:         "fsio",
	Class:        registry.ClassIO,
	Entry:        entry,
	Verification: registry.VerificationAlways,
	Metrics: []registry.MetricDeclaration{
		{ID: metricBytesPerSec, Label: "fsio_bytes_per_sec", Combine: registry.CombineSum},
	},
}

const (
	metricBytesPerSec = 0
	blockSize         = 64 * 1024
)

func entry(args registry.EntryArgs) (registry.ExitStatus, error) {
	f, err := os.CreateTemp("", "stressgo-fsio-*")
	if err != nil {
		return registry.StatusNoResource, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	block := make([]byte, blockSize)
	for i := range block {
		block[i] = byte(i)
	}

	start := time.Now()
	var ops uint64
	var totalBytes uint64
	readBuf := make([]byte, blockSize)
	for args.Continue() {
		if _, err := f.WriteAt(block, 0); err != nil {
			return registry.StatusFailure, err
		}
		if err := f.Sync(); err != nil {
			return registry.StatusFailure, err
		}
		if _, err := f.ReadAt(readBuf, 0); err != nil && err != io.EOF {
			return registry.StatusFailure, err
		}
		// Verification is ALWAYS for this stressor (spec §3): every cycle
		// round-trips through the page cache and checks for corruption.
		if !bytes.Equal(block, readBuf) {
			return registry.StatusFailure, &errs.AssertionFailure{Stressor: "fsio", Detail: "readback mismatch"}
		}
		totalBytes += uint64(blockSize) * 2
		ops++
		args.BogoInc(1)
		if args.MaxOps > 0 && ops >= args.MaxOps {
			break
		}
	}
	elapsed := time.Since(start).Seconds()
	if elapsed > 0 {
		args.MetricSet(metricBytesPerSec, float64(totalBytes)/elapsed, registry.CombineSum, "fsio_bytes_per_sec")
	}
	return registry.StatusSuccess, nil
}
