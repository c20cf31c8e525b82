// Package sig wires OS signals into the lifecycle/arena model (spec §4.J):
// installing handlers, and recording fatal-signal recoveries for stressors
// that opt into the RECOVER lifecycle state instead of dying outright.
package sig

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/stressgo/stressgo/internal/arena"
	"github.com/stressgo/stressgo/internal/lifecycle"
	"github.com/stressgo/stressgo/internal/logging"
)

// HandlerFunc processes a received signal for one worker instance.
type HandlerFunc func(sig os.Signal)

// Installer multiplexes OS signals onto per-purpose handlers, replacing
// direct, repeated calls to signal.Notify scattered across callers with one
// place that owns the channel and the registered signal set.
type Installer struct {
	mu       sync.Mutex
	ch       chan os.Signal
	handlers map[syscall.Signal][]HandlerFunc
	stop     chan struct{}
	once     sync.Once
}

// NewInstaller returns an idle Installer; call Start to begin delivering
// signals.
func NewInstaller() *Installer {
	return &Installer{
		ch:       make(chan os.Signal, 8),
		handlers: make(map[syscall.Signal][]HandlerFunc),
		stop:     make(chan struct{}),
	}
}

// InstallSighandler registers fn to be invoked whenever signum is
// delivered. Multiple handlers for the same signal all run, in
// registration order, mirroring the spec's old_out chaining semantics
// without actually exposing the previous C handler (Go has none to save).
func (in *Installer) InstallSighandler(signum syscall.Signal, fn HandlerFunc) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, already := in.handlers[signum]; !already {
		signal.Notify(in.ch, signum)
	}
	in.handlers[signum] = append(in.handlers[signum], fn)
}

// Start begins the dispatch goroutine. Safe to call once; subsequent calls
// are no-ops.
func (in *Installer) Start() {
	in.once.Do(func() {
		go in.loop()
	})
}

func (in *Installer) loop() {
	for {
		select {
		case s := <-in.ch:
			in.dispatch(s)
		case <-in.stop:
			return
		}
	}
}

func (in *Installer) dispatch(s os.Signal) {
	sysSig, ok := s.(syscall.Signal)
	if !ok {
		return
	}
	in.mu.Lock()
	handlers := append([]HandlerFunc(nil), in.handlers[sysSig]...)
	in.mu.Unlock()
	for _, h := range handlers {
		h(s)
	}
}

// Stop halts signal delivery; it does not un-register signal.Notify
// interest, since other Installers or packages may still want it.
func (in *Installer) Stop() {
	close(in.stop)
}

// FatalRecovery wires SIGBUS/SIGSEGV into a worker's arena slot: Go cannot
// siglongjmp out of a real fault's signal handler into arbitrary stack
// state, so recovery here only covers synthetically-raised instances (a
// stressor deliberately signalling itself to exercise the RECOVER path);
// a genuine out-of-bounds fault still crashes the worker process, and the
// supervisor observes that as a reaped-with-signal exit instead.
type FatalRecovery struct {
	arena    *arena.Arena
	instance int
}

// NewFatalRecovery returns a FatalRecovery bound to one worker's arena
// slot.
func NewFatalRecovery(a *arena.Arena, instance int) *FatalRecovery {
	return &FatalRecovery{arena: a, instance: instance}
}

// slotOf maps a fatal signal to its arena counter slot (0=SIGBUS,
// 1=SIGSEGV), matching internal/arena's documented layout.
func slotOf(s syscall.Signal) (int, bool) {
	switch s {
	case syscall.SIGBUS:
		return 0, true
	case syscall.SIGSEGV:
		return 1, true
	default:
		return 0, false
	}
}

// Handle increments the worker's signal counter, transitions it into
// StateRecover, and arms its SafePoint so the worker's main loop can
// observe the request and perform a controlled unwind on its next safe
// iteration boundary instead of continuing from undefined state.
func (f *FatalRecovery) Handle(safe *lifecycle.SafePoint, cell *lifecycle.Cell) HandlerFunc {
	return func(s os.Signal) {
		sysSig, ok := s.(syscall.Signal)
		if !ok {
			return
		}
		slotIdx, ok := slotOf(sysSig)
		if !ok {
			return
		}
		f.arena.IncSignalCount(f.instance, slotIdx)
		cell.TransitionAny([]lifecycle.State{lifecycle.StateRun, lifecycle.StateWait}, lifecycle.StateRecover)
		safe.MarkSafePoint()
		logging.Warn("sig", "fatal signal recorded for recovery", map[string]any{
			"instance": f.instance,
			"signal":   sysSig.String(),
		})
	}
}
