// Command stressgo is the workload-generation stress-testing harness: it
// spawns concurrent worker processes ("stressors") that hammer one OS
// subsystem, coordinates their lifecycle, and reports aggregated
// throughput at the end of the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stressgo/stressgo/internal/arena"
	"github.com/stressgo/stressgo/internal/cliplan"
	"github.com/stressgo/stressgo/internal/lifecycle"
	"github.com/stressgo/stressgo/internal/logging"
	"github.com/stressgo/stressgo/internal/metrics"
	"github.com/stressgo/stressgo/internal/procsup"
	"github.com/stressgo/stressgo/internal/registry"
	"github.com/stressgo/stressgo/internal/schedpolicy"
	"github.com/stressgo/stressgo/internal/settings"
	"github.com/stressgo/stressgo/internal/sig"
	"github.com/stressgo/stressgo/internal/supervisor"
	"github.com/stressgo/stressgo/stressors"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == procsup.WorkerModeFlag {
		os.Exit(runWorker(os.Args[2:]))
	}
	os.Exit(runSupervisor(os.Args[1:]))
}

// runSupervisor is the top-level process: parse CLI input, run every
// requested stressor to completion, print the aligned report, and return
// the process exit code (spec §6: worst-of-run ExitStatus).
func runSupervisor(args []string) int {
	plan, err := cliplan.ParseArgs("stressgo", args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stressgo:", err)
		return int(registry.StatusFailure)
	}

	logging.SetStructuredLogger(buildLogger(plan))

	reg := registry.NewRegistry()
	stressors.RegisterAll(reg)

	sup := supervisor.New(reg, nil)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := sup.Run(ctx, plan)
	if err != nil {
		logging.Error("stressgo", "run completed with errors", err, nil)
	}

	if err := metrics.WriteTable(os.Stdout, result.Reports); err != nil {
		fmt.Fprintln(os.Stderr, "stressgo: writing report:", err)
	}
	if result.ForceKilled {
		fmt.Fprintln(os.Stderr, "stressgo: one or more workers were force-killed; bogo counters may be incomplete")
	}

	return int(result.WorstExit)
}

// buildLogger assembles the run's logging sink from --log-file and
// --syslog (spec §6): stdout by default, a file if requested, syslog
// fanned in alongside either when requested. A --log-file open failure or
// a syslog dial failure is reported on stderr rather than aborting the
// run, the same tolerance the scheduler adapter gives an unsupported
// policy; stdout is not used in place of a file that failed to open.
func buildLogger(plan *cliplan.RunPlan) logging.Logger {
	var sinks []logging.Logger

	base := logging.NewDefaultLogger(logging.LevelInfo)
	if plan.LogFile != "" {
		fileLogger, err := logging.NewFileLogger(logging.LevelInfo, plan.LogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "stressgo: opening --log-file:", err)
		} else {
			sinks = append(sinks, fileLogger)
		}
	} else {
		sinks = append(sinks, base)
	}

	if plan.Syslog {
		sysLogger, err := logging.NewSyslogLogger(logging.LevelInfo, "stressgo")
		if err != nil {
			fmt.Fprintln(os.Stderr, "stressgo: --syslog:", err)
		} else {
			sinks = append(sinks, sysLogger)
		}
	}

	if len(sinks) == 1 {
		return sinks[0]
	}
	return logging.NewMultiLogger(sinks...)
}

// runWorker is the re-exec'd worker entry point: it attaches the inherited
// arena (fd 3), reads its WorkerParams (fd 4), applies the scheduler
// policy, installs fatal-signal recovery, runs the requested stressor's
// entry function, and publishes its exit status (spec §4.D/§4.E).
func runWorker(args []string) int {
	fs := flag.NewFlagSet("stressgo-worker", flag.ExitOnError)
	stressorName := fs.String("stressor", "", "stressor to run")
	_ = fs.Int("instance", 0, "instance index (informational; slot comes over the params pipe)")
	_ = fs.Parse(args)

	params, err := procsup.ReadWorkerParams()
	if err != nil {
		fmt.Fprintln(os.Stderr, "stressgo-worker: read params:", err)
		return int(registry.StatusFailure)
	}

	a, err := arena.OpenFromFD(3, params.TotalInstances)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stressgo-worker: attach arena:", err)
		return int(registry.StatusFailure)
	}
	defer a.Close()

	reg := registry.NewRegistry()
	stressors.RegisterAll(reg)
	desc, ok := reg.Lookup(*stressorName)
	if !ok {
		fmt.Fprintln(os.Stderr, "stressgo-worker: unknown stressor", *stressorName)
		return int(registry.StatusFailure)
	}

	cell := lifecycle.NewCell()
	a.SetWorkerState(params.Slot, lifecycle.StateInit)

	installer := sig.NewInstaller()
	safe := &lifecycle.SafePoint{}
	recovery := sig.NewFatalRecovery(a, params.Slot)
	installer.InstallSighandler(syscall.SIGBUS, recovery.Handle(safe, cell))
	installer.InstallSighandler(syscall.SIGSEGV, recovery.Handle(safe, cell))
	installer.Start()
	defer installer.Stop()

	if err := schedpolicy.Apply(schedpolicy.Request{
		PID:        os.Getpid(),
		Policy:     schedpolicy.Policy(params.SchedPolicy),
		Priority:   params.SchedPriority,
		Undefined:  params.SchedUndefined,
		Aggressive: params.SchedAggressive,
		Quiet:      params.Quiet,
		Deadline: schedpolicy.DeadlineParams{
			Period:   params.SchedPeriodNS,
			Runtime:  params.SchedRuntimeNS,
			Deadline: params.SchedDeadlineNS,
		},
	}); err != nil {
		logging.Warn("stressgo-worker", "scheduler policy not applied", map[string]any{"err": err.Error()})
	}

	a.SetWorkerState(params.Slot, lifecycle.StateSyncWait)
	a.BarrierWait()
	a.SetWorkerState(params.Slot, lifecycle.StateRun)

	status, err := desc.Entry(registry.EntryArgs{
		Name:           desc.Name,
		Instance:       params.Instance,
		TotalInstances: params.TotalInstances,
		PID:            os.Getpid(),
		PageSize:       os.Getpagesize(),
		EndTimeUnix:    params.EndTimeUnix,
		MaxOps:         params.MaxOps,
		Settings:       settings.NewStoreFromStressorSettings(desc.Name, params.Settings),
		Maximize:       params.Maximize,
		Minimize:       params.Minimize,
		Verify:         params.Verify,
		BogoInc:        func(delta uint64) { a.BogoInc(params.Slot, delta) },
		BogoSet:        func(n uint64) { a.BogoSet(params.Slot, n) },
		MetricSet: func(id int, value float64, combine registry.MetricCombine, label string) {
			if decl, ok := declaredMetric(desc.Metrics, id); ok && label != "" && label != decl.Label {
				logging.Warn("stressgo-worker", "metric label mismatch", map[string]any{
					"stressor": desc.Name, "id": id, "declared": decl.Label, "got": label,
				})
			}
			a.MetricSet(params.Slot, id, value, arena.Combine(combine), 0)
		},
		Continue: func() bool { return a.ContinueFlag() },
	})
	if err != nil {
		logging.Error("stressgo-worker", "entry returned an error", err, map[string]any{"stressor": desc.Name})
		if status == registry.StatusSuccess {
			status = registry.StatusFailure
		}
	}

	a.SetWorkerState(params.Slot, lifecycle.StateStop)
	a.SetWorkerState(params.Slot, lifecycle.StateDeinit)
	a.SetWorkerState(params.Slot, lifecycle.StateExit)

	return int(status)
}

// declaredMetric finds a stressor's static metric declaration by id, used
// to catch a worker publishing a label that disagrees with the one the
// descriptor declared (spec §3: "labels must match; mismatches are
// logged").
func declaredMetric(decls []registry.MetricDeclaration, id int) (registry.MetricDeclaration, bool) {
	for _, d := range decls {
		if d.ID == id {
			return d, true
		}
	}
	return registry.MetricDeclaration{}, false
}
