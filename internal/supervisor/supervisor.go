// Package supervisor wires together cliplan, registry, arena, procsup,
// termination, and metrics into the one end-to-end operation this
// repository exists to perform: run a plan, reap every worker, and report.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/stressgo/stressgo/internal/arena"
	"github.com/stressgo/stressgo/internal/cliplan"
	"github.com/stressgo/stressgo/internal/errs"
	"github.com/stressgo/stressgo/internal/lifecycle"
	"github.com/stressgo/stressgo/internal/logging"
	"github.com/stressgo/stressgo/internal/metrics"
	"github.com/stressgo/stressgo/internal/procsup"
	"github.com/stressgo/stressgo/internal/registry"
	"github.com/stressgo/stressgo/internal/termination"
)

// gracePeriod is how long workers get to notice the continue flag has
// dropped and exit cooperatively before the supervisor escalates to
// SIGKILL (spec §4.E/§4.G).
const gracePeriod = 5 * time.Second

// Supervisor owns one run: the registry it dispatches against, the
// capability probe it gates on, and the plan it's currently executing.
type Supervisor struct {
	Registry   *registry.Registry
	Capability registry.CapabilityChecker
}

// New returns a Supervisor over reg, using has (which may be nil) to gate
// capability-requiring stressors.
func New(reg *registry.Registry, has registry.CapabilityChecker) *Supervisor {
	return &Supervisor{Registry: reg, Capability: has}
}

// Result is the outcome of one Run: per-stressor reports plus the worst
// ExitStatus observed, which becomes the process's own exit code.
type Result struct {
	Reports     []metrics.StressorReport
	WorstExit   registry.ExitStatus
	ForceKilled bool
}

type spawnedWorker struct {
	handle   *procsup.Handle
	slot     int
	stressor string
}

type group struct {
	name     string
	start    int
	count    int
	declared []metrics.NamedMetric
}

// declaredMetrics maps a Descriptor's registry-local metric declarations
// onto internal/metrics' NamedMetric, translating registry.MetricCombine
// to arena.Combine (the two enums share the same ordering by design).
func declaredMetrics(decls []registry.MetricDeclaration) []metrics.NamedMetric {
	out := make([]metrics.NamedMetric, 0, len(decls))
	for _, d := range decls {
		out = append(out, metrics.NamedMetric{
			ID:      d.ID,
			Label:   d.Label,
			Combine: arena.Combine(d.Combine),
		})
	}
	return out
}

// Run spawns every stressor requested by plan, waits for completion or
// early termination, reaps every worker, and aggregates the final report.
func (s *Supervisor) Run(ctx context.Context, plan *cliplan.RunPlan) (Result, error) {
	total := 0
	for _, req := range plan.Stressors {
		total += req.Instances
	}
	if total == 0 {
		return Result{}, nil
	}

	a, err := arena.Open(total)
	if err != nil {
		return Result{}, fmt.Errorf("supervisor: open arena: %w", err)
	}
	defer a.Close()
	a.SetContinueFlag(true)

	fd, ok := a.FD()
	if !ok {
		return Result{}, fmt.Errorf("supervisor: arena has no backing fd on this platform")
	}

	coord := termination.New(a, plan.AbortThreshold)
	cancelSignals := coord.WatchSignals(ctx)
	defer cancelSignals()
	if plan.Timeout > 0 {
		cancelWallClock := coord.WatchWallClock(plan.Timeout)
		defer cancelWallClock()
	}

	runStart := time.Now()
	endTime := runStart
	if plan.Timeout > 0 {
		endTime = endTime.Add(plan.Timeout)
	}

	var agg errs.AggregateError
	var workers []spawnedWorker
	var groups []group
	var reports []metrics.StressorReport
	worst := registry.StatusSuccess
	slot := 0

	// skip records a stressor that never spawns a worker (missing
	// capability, or Supported() < 0): its reserved slots are marked
	// StateDeinit so the synchronized-start barrier doesn't wait on them
	// forever, and it contributes NOT_IMPLEMENTED to the run's aggregate
	// exit and a skip row to the report (spec §4.I, §7).
	skip := func(name string, instances int, reason string) {
		for i := 0; i < instances; i++ {
			a.SetWorkerState(slot, lifecycle.StateDeinit)
			slot++
		}
		reports = append(reports, metrics.SkipReport(name, reason))
		worst = registry.WorseOf(worst, registry.StatusNotImplemented)
	}

	for _, req := range plan.Stressors {
		desc, found := s.Registry.Lookup(req.Name)
		if !found {
			agg.Add(fmt.Errorf("supervisor: unknown stressor %q", req.Name))
			continue
		}
		if err := registry.CheckCapability(desc, s.Capability); err != nil {
			logging.Warn("supervisor", "skipping stressor: missing capability", map[string]any{"stressor": req.Name})
			skip(req.Name, req.Instances, err.Error())
			continue
		}
		if desc.Supported != nil && desc.Supported() < 0 {
			reason := desc.UnimplementedReason
			if reason == "" {
				reason = "no reason given"
			}
			logging.Info("supervisor", "stressor not supported on this platform", map[string]any{
				"stressor": req.Name,
				"reason":   reason,
			})
			skip(req.Name, req.Instances, reason)
			continue
		}
		if desc.Init != nil {
			desc.Init(req.Instances)
		}

		g := group{name: req.Name, start: slot, count: req.Instances, declared: declaredMetrics(desc.Metrics)}
		for i := 0; i < req.Instances; i++ {
			h, err := procsup.SpawnWorker(ctx, procsup.SpawnConfig{
				StressorName: req.Name,
				Instance:     i,
				ArenaFD:      fd,
				Params: procsup.WorkerParams{
					Instance:        i,
					TotalInstances:  req.Instances,
					Slot:            slot,
					EndTimeUnix:     endTime.Unix(),
					MaxOps:          plan.MaxOps,
					Settings:        plan.Settings.ForStressor(req.Name),
					SchedPolicy:     int(plan.Sched.Policy),
					SchedPriority:   plan.Sched.Priority,
					SchedUndefined:  plan.Sched.Undefined,
					SchedAggressive: plan.Aggressive,
					SchedPeriodNS:   plan.Sched.Deadline.Period,
					SchedRuntimeNS:  plan.Sched.Deadline.Runtime,
					SchedDeadlineNS: plan.Sched.Deadline.Deadline,
					Quiet:           plan.Quiet,
					Maximize:        plan.Maximize,
					Minimize:        plan.Minimize,
					Verify:          plan.Verify,
				},
			})
			if err != nil {
				agg.Add(fmt.Errorf("supervisor: spawn %s[%d]: %w", req.Name, i, err))
				a.SetWorkerState(slot, lifecycle.StateDeinit)
				slot++
				continue
			}
			workers = append(workers, spawnedWorker{handle: h, slot: slot, stressor: req.Name})
			slot++
		}
		groups = append(groups, g)
		if desc.Deinit != nil {
			defer desc.Deinit()
		}
	}

	go s.watchBarrier(ctx, a, total)

	statuses := make([]registry.ExitStatus, total)
	s.reapAll(ctx, a, coord, workers, statuses, &agg)

	elapsed := time.Since(runStart).Seconds()

	for _, g := range groups {
		reports = append(reports, metrics.Aggregate(a, g.name, g.start, g.count, elapsed, g.declared))
		for i := g.start; i < g.start+g.count; i++ {
			worst = registry.WorseOf(worst, statuses[i])
		}
	}
	metrics.SortByName(reports)

	if reason := coord.Reason(); reason != nil {
		agg.Add(reason)
	}

	var retErr error
	if !agg.Empty() {
		retErr = &agg
	}

	return Result{
		Reports:     reports,
		WorstExit:   worst,
		ForceKilled: a.ForceKilled(),
	}, retErr
}

// reapAll waits for every spawned worker, escalating to SIGKILL if the
// arena's continue flag drops and workers don't exit within gracePeriod
// (spec §4.E/§4.G).
func (s *Supervisor) reapAll(ctx context.Context, a *arena.Arena, coord *termination.Coordinator, workers []spawnedWorker, statuses []registry.ExitStatus, agg *errs.AggregateError) {
	if len(workers) == 0 {
		return
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	abortedCount := make(map[string]uint64)
	for _, w := range workers {
		wg.Add(1)
		go func(w spawnedWorker) {
			defer wg.Done()
			code, err := w.handle.Wait()
			status := registry.FromInt(code)

			mu.Lock()
			statuses[w.slot] = status
			if err != nil {
				agg.Add(fmt.Errorf("supervisor: reap %s[slot %d]: %w", w.stressor, w.slot, err))
			}
			if status == registry.StatusFailure || status == registry.StatusNoResource {
				abortedCount[w.stressor]++
			}
			count := abortedCount[w.stressor]
			mu.Unlock()

			// CheckAbortThreshold stops the whole run once too many
			// instances of one stressor have come back
			// FAILURE/NO_RESOURCE (spec §4.G point 4).
			coord.CheckAbortThreshold(count)
		}(w)
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	go s.watchdog(ctx, a, coord, workers, allDone)

	wg.Wait()
}

// watchBarrier polls every worker slot until all have reached SYNC_WAIT (or
// the run has already been told to stop), then releases the
// synchronized-start barrier so every worker proceeds into RUN together
// (spec §4.D).
func (s *Supervisor) watchBarrier(ctx context.Context, a *arena.Arena, total int) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		if a.AllReached(total, lifecycle.StateSyncWait) || !a.ContinueFlag() {
			a.ReleaseBarrier()
			return
		}
		select {
		case <-ctx.Done():
			a.ReleaseBarrier()
			return
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) watchdog(ctx context.Context, a *arena.Arena, coord *termination.Coordinator, workers []spawnedWorker, allDone <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-allDone:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if a.ContinueFlag() {
			continue
		}
		select {
		case <-allDone:
			return
		case <-time.After(gracePeriod):
			for _, w := range workers {
				if a.WorkerState(w.slot) == lifecycle.StateExit {
					continue
				}
				coord.NoteForceKilled(w.stressor, w.handle.PID)
				_ = procsup.KillSig(w.handle.PID, syscall.SIGKILL)
			}
			return
		}
	}
}
