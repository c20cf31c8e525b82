// Package registry implements the stressor descriptor table and dispatch
// contract (spec §4.I): a static name → StressorDescriptor mapping, with
// the supported/init/deinit hook lifecycle and capability gating.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/stressgo/stressgo/internal/errs"
	"github.com/stressgo/stressgo/internal/settings"
)

// ExitStatus is a worker's terminal status, matching the C enum named in
// spec §6.
type ExitStatus int

const (
	StatusSuccess ExitStatus = iota
	StatusFailure
	StatusNoResource
	StatusNotImplemented
)

func (s ExitStatus) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusNoResource:
		return "NO_RESOURCE"
	case StatusNotImplemented:
		return "NOT_IMPLEMENTED"
	default:
		return "FAILURE"
	}
}

// FromInt coerces a raw worker return value into ExitStatus, mapping any
// value outside the four declared statuses to FAILURE, per spec §6.
func FromInt(v int) ExitStatus {
	switch v {
	case int(StatusSuccess), int(StatusFailure), int(StatusNoResource), int(StatusNotImplemented):
		return ExitStatus(v)
	default:
		return StatusFailure
	}
}

// severity ranks a status in the worst-of-run precedence spec §7 defines —
// "FAILURE > NOT_IMPLEMENTED > NO_RESOURCE > SUCCESS" — which is distinct
// from the numeric ExitStatus/exit-code values spec §6 fixes at 0/1/2/3.
func (s ExitStatus) severity() int {
	switch s {
	case StatusFailure:
		return 3
	case StatusNotImplemented:
		return 2
	case StatusNoResource:
		return 1
	default:
		return 0
	}
}

// WorseOf returns whichever of a, b ranks higher in the spec §7 worst-of-run
// precedence order, so a run with one FAILURE and one NOT_IMPLEMENTED
// aggregates to FAILURE even though NOT_IMPLEMENTED carries the higher raw
// exit code (3 vs 1).
func WorseOf(a, b ExitStatus) ExitStatus {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// Classifier bits categorize a stressor's resource pressure; each
// Descriptor records its class, and neither the CLI plan nor the report
// groups stressors by it (spec glossary; §4.I).
type Classifier uint32

const (
	ClassCPU Classifier = 1 << iota
	ClassVM
	ClassIO
	ClassIPC
	ClassNetwork
	ClassScheduler
)

// EntryArgs is passed to a stressor's entry function (spec §6). BogoInc,
// BogoSet and MetricSet are bound to the worker's own arena slot by the caller; a
// stressor never touches the arena directly.
type EntryArgs struct {
	Name          string
	Instance      int
	TotalInstances int
	PID           int
	PageSize      int
	EndTimeUnix   int64
	MaxOps        uint64
	Settings      *settings.Store

	// Maximize and Minimize carry the run's --maximize/--minimize flags
	// (spec §6): a stressor whose options auto-scale (e.g. a byte quota
	// with no explicit "bytes" setting) picks the largest or smallest
	// reasonable value instead of its own hardcoded default.
	Maximize bool
	Minimize bool
	// Verify carries the run's global --verify flag (spec §6); a stressor
	// declared VerificationOptional should only perform its check when
	// this is true.
	Verify bool

	BogoInc   func(delta uint64)
	BogoSet   func(n uint64)
	MetricSet func(id int, value float64, combine MetricCombine, label string)
	Continue  func() bool
}

// MetricCombine mirrors arena.Combine without importing the arena package,
// keeping stressor implementations free of shared-memory layout details.
type MetricCombine int

const (
	CombineSum MetricCombine = iota
	CombineArithmeticMean
	CombineHarmonicMean
	CombineMin
	CombineMax
)

// EntryFunc is a stressor's entry contract: int entry(Args*) in spec §6,
// translated to Go's (status, error) idiom. A non-nil error is logged and
// coerced to StatusFailure if status was StatusSuccess.
type EntryFunc func(args EntryArgs) (ExitStatus, error)

// MetricDeclaration names one metric id/label/combine triple a stressor's
// entry function may publish, so the aggregator knows what to pull out of
// the arena at end-of-run without guessing ids from label strings.
type MetricDeclaration struct {
	ID      int
	Label   string
	Combine MetricCombine
}

// VerificationMode records whether a stressor's round-trip verification
// (spec §3 StressorDescriptor) is never available, always performed, or
// gated behind the run's --verify flag.
type VerificationMode int

const (
	VerificationNone VerificationMode = iota
	VerificationAlways
	VerificationOptional
)

func (m VerificationMode) String() string {
	switch m {
	case VerificationAlways:
		return "ALWAYS"
	case VerificationOptional:
		return "OPTIONAL"
	default:
		return "NONE"
	}
}

// Descriptor describes one stressor: its name, classifier, entry point,
// and optional lifecycle hooks (spec §4.I, §6).
type Descriptor struct {
	Name       string
	Class      Classifier
	Capability string // required capability, e.g. "CAP_SYS_ADMIN"; empty if none
	Entry      EntryFunc
	Metrics    []MetricDeclaration

	// Verification names whether this stressor ever performs a
	// round-trip/pattern check, and if so whether it is unconditional or
	// gated by RunPlan.Verify (spec §3).
	Verification VerificationMode
	// UnimplementedReason is surfaced to the run's report when Supported
	// returns negative, so a skipped stressor's slot says *why* rather
	// than just NOT_IMPLEMENTED (spec §3's "unimplemented-reason string").
	UnimplementedReason string

	// Supported, if non-nil, is called once before any worker forks. A
	// negative return skips the stressor entirely with NOT_IMPLEMENTED.
	Supported func() int
	// Init, if non-nil, is called once with the stressor's total instance
	// count before any worker forks.
	Init func(totalInstances int)
	// Deinit, if non-nil, is called once after every worker of this
	// stressor has been reaped.
	Deinit func()
}

// Registry is the static name → Descriptor table.
type Registry struct {
	mu    sync.RWMutex
	table map[string]Descriptor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{table: make(map[string]Descriptor)}
}

// Register adds a descriptor. Panics on duplicate names: descriptor
// registration happens at process init, where a collision is a programmer
// error, not a runtime condition to recover from.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.table[d.Name]; exists {
		panic(fmt.Sprintf("registry: duplicate stressor name %q", d.Name))
	}
	r.table[d.Name] = d
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.table[name]
	return d, ok
}

// Names returns every registered stressor name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.table))
	for n := range r.table {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CapabilityChecker reports whether the running process holds capability.
// The concrete probe (CAP_SYS_ADMIN, CAP_SYS_NICE, ...) is a platform
// concern outside this package's scope; tests supply a stub.
type CapabilityChecker func(capability string) bool

// CheckCapability returns a CapabilityError if d requires a capability the
// process doesn't hold. A nil checker treats every capability as held.
func CheckCapability(d Descriptor, has CapabilityChecker) error {
	if d.Capability == "" {
		return nil
	}
	if has == nil || has(d.Capability) {
		return nil
	}
	return &errs.CapabilityError{Stressor: d.Name, Capability: d.Capability}
}
