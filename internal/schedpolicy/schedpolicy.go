// Package schedpolicy applies scheduling policy to a worker process, in the
// uniform calling convention every stressor needs to re-apply policy after
// its own fork (spec §4.F).
//
// The concrete syscalls are isolated per-GOOS, following eventloop's own
// poller_linux.go/poller_darwin.go/poller_windows.go split: one function
// signature, implemented once per platform, with unsupported platforms
// falling back to a logged no-op rather than a build failure.
package schedpolicy

import "github.com/stressgo/stressgo/internal/logging"

// Policy is a scheduling policy. The set mirrors Linux's sched(7) policies
// plus EXT, a Linux-only scheduler class extension hook.
type Policy int

const (
	PolicyUndefined Policy = iota
	PolicyOther
	PolicyBatch
	PolicyIdle
	PolicyFIFO
	PolicyRR
	PolicyDeadline
	PolicyExt
)

func (p Policy) String() string {
	switch p {
	case PolicyOther:
		return "OTHER"
	case PolicyBatch:
		return "BATCH"
	case PolicyIdle:
		return "IDLE"
	case PolicyFIFO:
		return "FIFO"
	case PolicyRR:
		return "RR"
	case PolicyDeadline:
		return "DEADLINE"
	case PolicyExt:
		return "EXT"
	default:
		return "UNDEFINED"
	}
}

const (
	// PriorityMin and PriorityMax bound the priority value accepted for
	// FIFO/RR policies, matching Linux's sched_get_priority_min/max(2) for
	// SCHED_FIFO and SCHED_RR, which share the same [1, 99] range.
	PriorityMin = 1
	PriorityMax = 99

	// priorityMidpoint is used when Priority is Undefined and Aggressive
	// is false.
	priorityMidpoint = (PriorityMin + PriorityMax) / 2
)

// DeadlineParams carries the sched_attr fields SCHED_DEADLINE requires,
// populated from settings (spec §4.F).
type DeadlineParams struct {
	Period  uint64 // nanoseconds
	Runtime uint64 // nanoseconds
	Deadline uint64 // nanoseconds
}

// Request describes one apply_policy call.
type Request struct {
	PID        int
	Policy     Policy
	Priority   int // Undefined priority is represented by Priority == 0 with Undefined set
	Undefined  bool
	Aggressive bool
	Quiet      bool
	Deadline   DeadlineParams
}

// resolvePriority implements the UNDEFINED-priority rule from spec §4.F:
// "use the midpoint unless the aggressive flag is set, in which case use
// max", then clamps into [PriorityMin, PriorityMax].
func resolvePriority(req Request) int {
	p := req.Priority
	if req.Undefined {
		if req.Aggressive {
			p = PriorityMax
		} else {
			p = priorityMidpoint
		}
	}
	if p < PriorityMin {
		p = PriorityMin
	}
	if p > PriorityMax {
		p = PriorityMax
	}
	return p
}

// Apply applies req's policy to req.PID. Unsupported policies on the host
// produce a no-op with a log line rather than an error, per spec §4.F.
func Apply(req Request) error {
	priority := resolvePriority(req)
	return applyPlatform(req, priority)
}

func logNoop(req Request, reason string) {
	if req.Quiet {
		return
	}
	logging.Info("schedpolicy", "policy not applied", map[string]any{
		"pid":    req.PID,
		"policy": req.Policy.String(),
		"reason": reason,
	})
}
