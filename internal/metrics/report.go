package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/stressgo/stressgo/internal/arena"
)

// NamedMetric is one (id, label, combine) triple to aggregate across every
// instance of a stressor, paired with the resolved label string (slot
// label indices are resolved by the caller, which owns the label table).
type NamedMetric struct {
	ID      int
	Label   string
	Combine arena.Combine
}

// StressorReport is the per-stressor aggregation the end-of-run report
// prints one block of: the bogo-op total and rate, plus every declared
// named metric combined across all instances that published it.
//
// A stressor skipped before any worker forked (missing capability, or
// Supported() < 0, spec §4.I/§7) carries no instances or metrics; Skipped
// and SkipReason describe why instead.
type StressorReport struct {
	Name        string
	Instances   int
	BogoTotal   uint64
	ElapsedSecs float64
	Metrics     []MetricResult
	Skipped     bool
	SkipReason  string
}

// SkipReport builds the report row for a stressor that never spawned a
// worker.
func SkipReport(name, reason string) StressorReport {
	return StressorReport{Name: name, Skipped: true, SkipReason: reason}
}

// MetricResult is one aggregated metric value, ready to print.
type MetricResult struct {
	Label string
	Value float64
}

// Rate returns the derived bogo-op rate for this stressor's report.
func (r StressorReport) Rate() float64 {
	return Rate(r.BogoTotal, r.ElapsedSecs)
}

// Aggregate builds a StressorReport from an Arena's per-worker slots for
// the instances [start, start+count), and the metric declarations that
// stressor published.
func Aggregate(a *arena.Arena, name string, start, count int, elapsedSecs float64, declared []NamedMetric) StressorReport {
	report := StressorReport{Name: name, Instances: count, ElapsedSecs: elapsedSecs}

	for i := start; i < start+count; i++ {
		report.BogoTotal += a.BogoCount(i)
	}

	for _, m := range declared {
		values := make([]float64, 0, count)
		for i := start; i < start+count; i++ {
			values = append(values, a.MetricGet(i, m.ID).Value)
		}
		report.Metrics = append(report.Metrics, MetricResult{
			Label: m.Label,
			Value: Combine(m.Combine, values),
		})
	}

	return report
}

// WriteTable renders reports as an aligned table, one block per stressor,
// followed by an aggregate line, matching spec §4.H's reporting
// requirement. Column alignment uses text/tabwriter, the same approach
// the standard library itself recommends for CLI table output.
func WriteTable(w io.Writer, reports []StressorReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "stressor\tinstances\tbogo-ops\trate/s")
	var totalBogo uint64
	var maxElapsed float64
	for _, r := range reports {
		if r.Skipped {
			fmt.Fprintf(tw, "%s\tskipped\t-\t-\t%s\n", r.Name, r.SkipReason)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\n", r.Name, r.Instances, r.BogoTotal, r.Rate())
		for _, m := range r.Metrics {
			fmt.Fprintf(tw, "  %s\t\t\t%.4f\n", m.Label, m.Value)
		}
		totalBogo += r.BogoTotal
		if r.ElapsedSecs > maxElapsed {
			maxElapsed = r.ElapsedSecs
		}
	}
	fmt.Fprintf(tw, "%s\t\t%d\t%.2f\n", strings.Repeat("-", 8), totalBogo, Rate(totalBogo, maxElapsed))

	return tw.Flush()
}

// SortByName orders reports alphabetically, for deterministic output.
func SortByName(reports []StressorReport) {
	sort.Slice(reports, func(i, j int) bool { return reports[i].Name < reports[j].Name })
}
