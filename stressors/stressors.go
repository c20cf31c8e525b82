// Package stressors collects every built-in stressor descriptor for
// registration into an internal/registry.Registry.
package stressors

import (
	"github.com/stressgo/stressgo/internal/registry"
	"github.com/stressgo/stressgo/stressors/cpu"
	"github.com/stressgo/stressgo/stressors/fsio"
	"github.com/stressgo/stressgo/stressors/ipc"
	"github.com/stressgo/stressgo/stressors/sched"
	"github.com/stressgo/stressgo/stressors/sock"
	"github.com/stressgo/stressgo/stressors/vm"
)

// All returns every built-in stressor descriptor, in registration order.
func All() []registry.Descriptor {
	return []registry.Descriptor{
		cpu.Descriptor,
		vm.Descriptor,
		fsio.Descriptor,
		ipc.Descriptor,
		sock.Descriptor,
		sched.Descriptor,
	}
}

// RegisterAll registers every built-in descriptor into r.
func RegisterAll(r *registry.Registry) {
	for _, d := range All() {
		r.Register(d)
	}
}
