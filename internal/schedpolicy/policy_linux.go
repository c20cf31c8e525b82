//go:build linux

package schedpolicy

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func toLinuxPolicy(p Policy) (int, bool) {
	switch p {
	case PolicyOther, PolicyUndefined:
		return unix.SCHED_OTHER, true
	case PolicyBatch:
		return unix.SCHED_BATCH, true
	case PolicyIdle:
		return unix.SCHED_IDLE, true
	case PolicyFIFO:
		return unix.SCHED_FIFO, true
	case PolicyRR:
		return unix.SCHED_RR, true
	default:
		// PolicyDeadline and PolicyExt need sched_setattr(2), which x/sys/unix
		// does not expose a high-level wrapper for; both are treated as
		// unsupported on this host rather than hand-rolling the raw syscall.
		return 0, false
	}
}

func applyPlatform(req Request, priority int) error {
	linuxPolicy, ok := toLinuxPolicy(req.Policy)
	if !ok {
		logNoop(req, "policy requires sched_setattr, unsupported")
		return nil
	}

	sp := &unix.SchedParam{}
	if req.Policy == PolicyFIFO || req.Policy == PolicyRR {
		sp.Priority = int32(priority)
	}

	if err := unix.SchedSetscheduler(req.PID, linuxPolicy, sp); err != nil {
		if err == unix.EPERM || err == unix.EINVAL {
			logNoop(req, fmt.Sprintf("sched_setscheduler: %v", err))
			return nil
		}
		return fmt.Errorf("schedpolicy: apply %s to pid %d: %w", req.Policy, req.PID, err)
	}
	return nil
}
