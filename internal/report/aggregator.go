package report

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/dochub/internal/metrics"
)

// Aggregator collects settled tasks from concurrent workers. All mutation
// goes through Record; the report is frozen by Finalize.
type Aggregator struct {
	mu        sync.Mutex
	report    BuildReport
	recorded  map[string]struct{}
	finalized bool
	recorder  metrics.Recorder
}

// NewAggregator starts an empty report for a run over the given wave plan.
func NewAggregator(waves [][]string, revision string) *Aggregator {
	return &Aggregator{
		report: BuildReport{
			SchemaVersion: schemaVersion,
			RunID:         uuid.NewString(),
			Revision:      revision,
			Start:         time.Now(),
			Waves:         waves,
			Counts:        make(map[Outcome]int),
		},
		recorded: make(map[string]struct{}),
		recorder: metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder. Returns the aggregator for chaining.
func (a *Aggregator) SetRecorder(r metrics.Recorder) *Aggregator {
	if r != nil {
		a.recorder = r
	}
	return a
}

// RunID returns the run identifier assigned at start.
func (a *Aggregator) RunID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.report.RunID
}

// Record adds a settled task. Must be called exactly once per task; a second
// call for the same package or a non-terminal outcome is a programming error
// and panics rather than silently corrupting counts.
func (a *Aggregator) Record(t Task) {
	if !t.Outcome.Terminal() {
		panic(fmt.Sprintf("report: recording non-terminal outcome %q for %s", t.Outcome, t.Package))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		panic("report: Record after Finalize")
	}
	if _, dup := a.recorded[t.Package]; dup {
		panic(fmt.Sprintf("report: task %s recorded twice", t.Package))
	}
	a.recorded[t.Package] = struct{}{}
	a.report.Tasks = append(a.report.Tasks, t)
	a.report.Counts[t.Outcome]++
	if t.Category != "" && (t.Outcome == OutcomeFailedRecoverable || t.Outcome == OutcomeFailedFatal) {
		if a.report.FailureCategories == nil {
			a.report.FailureCategories = make(map[string]int)
		}
		a.report.FailureCategories[t.Category]++
	}
	a.recorder.ObserveTaskDuration(t.Package, t.Duration, t.Outcome == OutcomeSucceeded)
	a.recorder.IncTaskOutcome(string(t.Outcome))
}

// SucceededNames returns packages recorded as succeeded so far, in
// settlement order. Used by the hub assembler after waves settle.
func (a *Aggregator) SucceededNames() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var names []string
	for _, t := range a.report.Tasks {
		if t.Outcome == OutcomeSucceeded {
			names = append(names, t.Package)
		}
	}
	return names
}

// Finalize freezes the report with the hub status and run totals.
// Further Record calls panic.
func (a *Aggregator) Finalize(hub HubStatus, aborted bool) *BuildReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalized = true
	a.report.End = time.Now()
	a.report.Duration = a.report.End.Sub(a.report.Start)
	a.report.HubStatus = hub
	a.report.Aborted = aborted
	a.recorder.ObserveRunDuration(a.report.Duration)
	a.recorder.IncRunOutcome(runOutcomeLabel(&a.report))
	return &a.report
}

func runOutcomeLabel(r *BuildReport) string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.AllSucceeded():
		return "success"
	default:
		return "partial"
	}
}
