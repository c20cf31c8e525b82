// Package cliplan turns CLI input into a validated RunPlan. Parsing and
// help rendering are deliberately thin here — the supervisor (package
// internal/supervisor) is the part this repository is actually about — but the
// RunPlan it produces is the one artifact everything downstream consumes.
package cliplan

import (
	"flag"
	"fmt"
	"time"

	"github.com/stressgo/stressgo/internal/schedpolicy"
	"github.com/stressgo/stressgo/internal/settings"
	"github.com/stressgo/stressgo/internal/sizeval"
)

// StressorRequest is one `--<name> N` CLI argument: run N instances of
// the named stressor.
type StressorRequest struct {
	Name      string
	Instances int
}

// SchedRequest carries the --sched family of flags (spec §6): a policy
// name, its priority (Undefined is set when no priority was given), and the DEADLINE
// period/runtime/deadline trio, all expressed in schedpolicy's vocabulary
// so cliplan never has to know how a policy is applied, only how it's
// named on the command line.
type SchedRequest struct {
	Policy    schedpolicy.Policy
	Priority  int
	Undefined bool
	Deadline  schedpolicy.DeadlineParams
}

// RunPlan is the validated result of parsing CLI input: everything the
// supervisor needs to start a run.
type RunPlan struct {
	Stressors      []StressorRequest
	Timeout        time.Duration
	MaxOps         uint64
	AbortThreshold uint64
	Aggressive     bool
	Quiet          bool
	Verify         bool
	Maximize       bool
	Minimize       bool
	LogFile        string
	Syslog         bool
	Sched          SchedRequest
	Settings       *settings.Store
}

// planOptions is the mutable struct RunOptions are applied against, kept
// unexported the same way eventloop's loopOptions is, so construction
// always goes through the functional-options builder.
type planOptions struct {
	timeout        time.Duration
	maxOps         uint64
	abortThreshold uint64
	aggressive     bool
	quiet          bool
	verify         bool
	maximize       bool
	minimize       bool
	logFile        string
	syslog         bool
	sched          SchedRequest
}

// RunOption configures a RunPlan during Build, mirroring
// eventloop.LoopOption's applyLoop contract.
type RunOption interface {
	applyPlan(*planOptions) error
}

type runOptionFunc func(*planOptions) error

func (f runOptionFunc) applyPlan(o *planOptions) error { return f(o) }

// WithTimeout sets the run's wall-clock budget.
func WithTimeout(d time.Duration) RunOption {
	return runOptionFunc(func(o *planOptions) error {
		if d < 0 {
			return fmt.Errorf("cliplan: negative timeout %v", d)
		}
		o.timeout = d
		return nil
	})
}

// WithMaxOps sets the per-worker bogo-op cap; 0 means unbounded.
func WithMaxOps(n uint64) RunOption {
	return runOptionFunc(func(o *planOptions) error {
		o.maxOps = n
		return nil
	})
}

// WithAbortThreshold sets how many aborted worker instances of one
// stressor the run tolerates before the termination coordinator stops everything early.
func WithAbortThreshold(n uint64) RunOption {
	return runOptionFunc(func(o *planOptions) error {
		o.abortThreshold = n
		return nil
	})
}

// WithAggressive sets the scheduler-priority resolution rule to prefer
// PriorityMax over the midpoint default (internal/schedpolicy).
func WithAggressive(v bool) RunOption {
	return runOptionFunc(func(o *planOptions) error {
		o.aggressive = v
		return nil
	})
}

// WithQuiet suppresses the scheduler no-op fallback warning.
func WithQuiet(v bool) RunOption {
	return runOptionFunc(func(o *planOptions) error {
		o.quiet = v
		return nil
	})
}

// WithVerify enables per-stressor round-trip verification where supported.
func WithVerify(v bool) RunOption {
	return runOptionFunc(func(o *planOptions) error {
		o.verify = v
		return nil
	})
}

// WithMaximize requests that auto-scaled options (byte-size-fs-percent and
// similar settings) pick the largest reasonable value instead of their
// stressor-defined default.
func WithMaximize(v bool) RunOption {
	return runOptionFunc(func(o *planOptions) error {
		o.maximize = v
		return nil
	})
}

// WithMinimize is WithMaximize's opposite: auto-scaled options pick the
// smallest reasonable value.
func WithMinimize(v bool) RunOption {
	return runOptionFunc(func(o *planOptions) error {
		o.minimize = v
		return nil
	})
}

// WithLogFile routes the run's structured log entries to the named file
// instead of stdout.
func WithLogFile(path string) RunOption {
	return runOptionFunc(func(o *planOptions) error {
		o.logFile = path
		return nil
	})
}

// WithSyslog routes the run's structured log entries to the local syslog
// daemon in addition to (or instead of) LogFile.
func WithSyslog(v bool) RunOption {
	return runOptionFunc(func(o *planOptions) error {
		o.syslog = v
		return nil
	})
}

// WithSched sets the scheduler policy/priority/deadline-params every
// worker applies to itself after re-exec (spec §4.F/§6).
func WithSched(req SchedRequest) RunOption {
	return runOptionFunc(func(o *planOptions) error {
		o.sched = req
		return nil
	})
}

// resolvePlanOptions applies opts over the zero-value defaults, the same
// nil-skipping discipline as eventloop.resolveLoopOptions.
func resolvePlanOptions(opts []RunOption) (*planOptions, error) {
	cfg := &planOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyPlan(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Build assembles a RunPlan from a set of stressor requests and options.
func Build(stressors []StressorRequest, store *settings.Store, opts ...RunOption) (*RunPlan, error) {
	cfg, err := resolvePlanOptions(opts)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = settings.NewStore()
	}
	return &RunPlan{
		Stressors:      stressors,
		Timeout:        cfg.timeout,
		MaxOps:         cfg.maxOps,
		AbortThreshold: cfg.abortThreshold,
		Aggressive:     cfg.aggressive,
		Quiet:          cfg.quiet,
		Verify:         cfg.verify,
		Maximize:       cfg.maximize,
		Minimize:       cfg.minimize,
		LogFile:        cfg.logFile,
		Syslog:         cfg.syslog,
		Sched:          cfg.sched,
		Settings:       store,
	}, nil
}

// ParseArgs parses a stressor-name/instance-count/global-flag command
// line into a RunPlan. Only the flags defined below are accepted: an
// unknown flag, including a stressor-specific "--<stressor>-<option>", is
// an error, and the returned plan's Settings store is empty.
//
// Example: stressgo --cpu 4 --vm 2 --timeout 30s
func ParseArgs(progName string, args []string) (*RunPlan, error) {
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)

	var (
		timeoutStr    = fs.String("timeout", "60s", "wall-clock run budget, e.g. 30s, 2m")
		maxOpsStr     = fs.String("max-ops", "0", "per-worker bogo-op cap, 0 = unbounded")
		abortN        = fs.Uint64("abort-threshold", 0, "aborted instances tolerated before early stop, 0 = disabled")
		aggressive    = fs.Bool("aggressive", false, "prefer maximum scheduler priority over the default midpoint")
		quiet         = fs.Bool("quiet", false, "suppress scheduler fallback warnings")
		verify        = fs.Bool("verify", false, "enable per-stressor round-trip verification where supported")
		maximize      = fs.Bool("maximize", false, "auto-scaled options pick the largest reasonable value")
		minimize      = fs.Bool("minimize", false, "auto-scaled options pick the smallest reasonable value")
		logFile       = fs.String("log-file", "", "append structured log entries to this file instead of stdout")
		useSyslog     = fs.Bool("syslog", false, "also send structured log entries to the local syslog daemon")
		schedName     = fs.String("sched", "", "scheduler policy: other, batch, idle, fifo, rr, deadline, ext")
		schedPrioStr  = fs.String("sched-prio", "", "scheduler priority for fifo/rr, e.g. 50; empty = UNDEFINED")
		schedPeriod   = fs.String("sched-period", "0", "SCHED_DEADLINE period, e.g. 10ms")
		schedRuntime  = fs.String("sched-runtime", "0", "SCHED_DEADLINE runtime, e.g. 2ms")
		schedDeadline = fs.String("sched-deadline", "0", "SCHED_DEADLINE deadline, e.g. 10ms")
	)

	stressorCounts := make(map[string]*int)
	knownStressors := []string{"cpu", "vm", "fsio", "ipc", "sock", "sched"}
	for _, name := range knownStressors {
		stressorCounts[name] = fs.Int(name, 0, fmt.Sprintf("run N instances of the %q stressor", name))
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	timeoutSecs, err := sizeval.ParseTime("timeout", *timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("cliplan: %w", err)
	}
	timeout := time.Duration(timeoutSecs) * time.Second
	maxOps, err := sizeval.ParseUint("max-ops", *maxOpsStr, 64)
	if err != nil {
		return nil, fmt.Errorf("cliplan: %w", err)
	}

	var requests []StressorRequest
	for _, name := range knownStressors {
		if n := *stressorCounts[name]; n > 0 {
			requests = append(requests, StressorRequest{Name: name, Instances: n})
		}
	}

	sched, err := parseSchedFlags(*schedName, *schedPrioStr, *schedPeriod, *schedRuntime, *schedDeadline)
	if err != nil {
		return nil, fmt.Errorf("cliplan: %w", err)
	}

	return Build(requests, settings.NewStore(),
		WithTimeout(timeout),
		WithMaxOps(maxOps),
		WithAbortThreshold(*abortN),
		WithAggressive(*aggressive),
		WithQuiet(*quiet),
		WithVerify(*verify),
		WithMaximize(*maximize),
		WithMinimize(*minimize),
		WithLogFile(*logFile),
		WithSyslog(*useSyslog),
		WithSched(sched),
	)
}

// schedPolicyByName maps the lowercase --sched flag value onto
// schedpolicy.Policy (spec §6: "other, batch, idle, fifo, rr, deadline,
// ext"); empty string means "not requested" (PolicyUndefined, which
// schedpolicy applies as SCHED_OTHER on Linux).
var schedPolicyByName = map[string]schedpolicy.Policy{
	"":        schedpolicy.PolicyUndefined,
	"other":   schedpolicy.PolicyOther,
	"batch":   schedpolicy.PolicyBatch,
	"idle":    schedpolicy.PolicyIdle,
	"fifo":    schedpolicy.PolicyFIFO,
	"rr":      schedpolicy.PolicyRR,
	"deadline": schedpolicy.PolicyDeadline,
	"ext":     schedpolicy.PolicyExt,
}

// parseSchedFlags turns the --sched family of raw flag strings into a
// SchedRequest. A sub-second DEADLINE period/runtime/deadline is outside
// sizeval's second-granularity ParseTime (spec §4.A only names s/m/h/d/w/y
// suffixes), so these three use the standard library's time.ParseDuration,
// the idiomatic Go parser for millisecond/microsecond-scale literals like
// "10ms" that sizeval was never specified to handle.
func parseSchedFlags(name, prioStr, periodStr, runtimeStr, deadlineStr string) (SchedRequest, error) {
	policy, ok := schedPolicyByName[lowerASCII(name)]
	if !ok {
		return SchedRequest{}, fmt.Errorf("unknown --sched policy %q", name)
	}

	req := SchedRequest{Policy: policy, Undefined: true}
	if prioStr != "" {
		prio, err := sizeval.ParseInt("sched-prio", prioStr, 32)
		if err != nil {
			return SchedRequest{}, err
		}
		req.Priority = int(prio)
		req.Undefined = false
	}

	period, err := time.ParseDuration(orDefault(periodStr, "0"))
	if err != nil {
		return SchedRequest{}, fmt.Errorf("sched-period: %w", err)
	}
	runtime, err := time.ParseDuration(orDefault(runtimeStr, "0"))
	if err != nil {
		return SchedRequest{}, fmt.Errorf("sched-runtime: %w", err)
	}
	deadline, err := time.ParseDuration(orDefault(deadlineStr, "0"))
	if err != nil {
		return SchedRequest{}, fmt.Errorf("sched-deadline: %w", err)
	}
	req.Deadline = schedpolicy.DeadlineParams{
		Period:   uint64(period.Nanoseconds()),
		Runtime:  uint64(runtime.Nanoseconds()),
		Deadline: uint64(deadline.Nanoseconds()),
	}
	return req, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
