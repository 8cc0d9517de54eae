// Package orchestrator drives the wave-ordered build: a sequential loop over
// waves with a bounded worker pool inside each wave, skip propagation to
// dependents of failed packages, and fast cooperative abort when the
// compiler tooling itself turns out to be unusable.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/dochub/internal/classify"
	"git.home.luguber.info/inful/dochub/internal/compiler"
	"git.home.luguber.info/inful/dochub/internal/config"
	"git.home.luguber.info/inful/dochub/internal/events"
	"git.home.luguber.info/inful/dochub/internal/metrics"
	"git.home.luguber.info/inful/dochub/internal/report"
)

// outputTailLimit bounds the captured output carried into the report.
const outputTailLimit = 4096

// Invoker abstracts the compiler invocation for tests.
type Invoker interface {
	Invoke(ctx context.Context, req compiler.Request) (*compiler.Result, error)
}

// Orchestrator schedules package builds over the wave plan.
type Orchestrator struct {
	invoker     Invoker
	classifier  *classify.Classifier
	maxParallel int
	configFile  string
	recorder    metrics.Recorder
	publisher   events.Publisher
}

// New creates an orchestrator with the default noop recorder and publisher.
func New(inv Invoker, cls *classify.Classifier, cfg *config.Config) *Orchestrator {
	maxParallel := cfg.Build.MaxParallel
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Orchestrator{
		invoker:     inv,
		classifier:  cls,
		maxParallel: maxParallel,
		configFile:  cfg.Compiler.ConfigFile,
		recorder:    metrics.NoopRecorder{},
		publisher:   events.NoopPublisher{},
	}
}

// SetRecorder injects a metrics recorder. Returns the orchestrator for chaining.
func (o *Orchestrator) SetRecorder(r metrics.Recorder) *Orchestrator {
	if r != nil {
		o.recorder = r
	}
	return o
}

// SetPublisher injects an event publisher. Returns the orchestrator for chaining.
func (o *Orchestrator) SetPublisher(p events.Publisher) *Orchestrator {
	if p != nil {
		o.publisher = p
	}
	return o
}

// runState is the orchestrator-owned mutable state for one run. Workers
// touch it only under the mutex; everything else they see is read-only.
type runState struct {
	mu       sync.Mutex
	statuses map[string]report.Outcome
	aborted  bool
}

func (s *runState) status(name string) report.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[name]
}

func (s *runState) setStatus(name string, o report.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[name] = o
}

func (s *runState) markAborted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
}

// Run executes the plan. Waves are strictly sequential: wave k fully settles
// before wave k+1 begins, because later waves may read earlier waves' output
// paths from disk. Within a wave, tasks run on a bounded worker pool.
// Returns true when the run was aborted by a fatal tooling failure.
func (o *Orchestrator) Run(ctx context.Context, plan *Plan, agg *report.Aggregator) bool {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	state := &runState{statuses: make(map[string]report.Outcome, plan.TaskCount())}
	for _, wave := range plan.Waves {
		for _, name := range wave {
			state.statuses[name] = report.OutcomePending
		}
	}

	o.publisher.RunStarted(agg.RunID(), plan.TaskCount(), len(plan.Waves))

	for wi, wave := range plan.Waves {
		if runCtx.Err() != nil {
			o.skipRemaining(plan.Waves[wi:], wi, state, agg, "run aborted")
			break
		}

		runnable := o.partitionWave(wave, wi, plan, state, agg)
		if len(runnable) == 0 {
			continue
		}
		o.runWave(runCtx, cancelRun, runnable, wi, plan, state, agg)
	}

	state.mu.Lock()
	aborted := state.aborted
	state.mu.Unlock()
	return aborted
}

// partitionWave settles skips up front: a task runs only when every
// dependency reached Succeeded. Dependents of failed or skipped packages are
// marked Skipped without ever invoking the compiler, so a single package
// defect cannot blank out documentation cross-referencing an unbuilt tree.
func (o *Orchestrator) partitionWave(wave []string, wi int, plan *Plan, state *runState, agg *report.Aggregator) []string {
	var runnable []string
	for _, name := range wave {
		blocked := ""
		for _, dep := range plan.Graph.Dependencies(name) {
			if state.status(dep) != report.OutcomeSucceeded {
				blocked = dep
				break
			}
		}
		if blocked == "" {
			runnable = append(runnable, name)
			continue
		}
		o.settle(state, agg, report.Task{
			Package:    name,
			Wave:       wi,
			Outcome:    report.OutcomeSkipped,
			SkipReason: report.DependencySkipReason(blocked),
		})
		slog.Info("Skipping package, dependency did not build", "package", name, "dependency", blocked)
	}
	return runnable
}

// runWave executes runnable tasks on a worker pool bounded by the configured
// parallelism. Workers check the run context before claiming a task so a
// fatal abort stops the wave quickly; in-flight subprocesses receive the
// invoker's graceful-then-forced termination through context cancellation.
func (o *Orchestrator) runWave(runCtx context.Context, cancelRun context.CancelFunc, runnable []string, wi int, plan *Plan, state *runState, agg *report.Aggregator) {
	concurrency := o.maxParallel
	if concurrency > len(runnable) {
		concurrency = len(runnable)
	}
	o.recorder.SetWaveConcurrency(concurrency)
	slog.Debug("Starting wave", "wave", wi, "tasks", len(runnable), "concurrency", concurrency)

	tasks := make(chan string)
	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for name := range tasks {
			select {
			case <-runCtx.Done():
				o.settle(state, agg, report.Task{
					Package:    name,
					Wave:       wi,
					Outcome:    report.OutcomeSkipped,
					SkipReason: "run aborted",
				})
				continue
			default:
			}
			o.buildOne(runCtx, cancelRun, name, wi, plan, state, agg)
		}
	}

	wg.Add(concurrency)
	for range concurrency {
		go worker()
	}
	for _, name := range runnable {
		tasks <- name
	}
	close(tasks)
	wg.Wait()
}

// buildOne drives a single task through Running to a terminal state.
func (o *Orchestrator) buildOne(runCtx context.Context, cancelRun context.CancelFunc, name string, wi int, plan *Plan, state *runState, agg *report.Aggregator) {
	desc := plan.Descriptors[name]
	state.setStatus(name, report.OutcomeRunning)
	slog.Info("Building package documentation", "package", name, "wave", wi)

	started := time.Now()
	res, launchErr := o.invoker.Invoke(runCtx, compiler.Request{
		Dir:        desc.DocsSourcePath,
		ConfigFile: o.configFile,
	})
	finished := time.Now()

	task := report.Task{
		Package:    name,
		Wave:       wi,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
	}
	if res != nil {
		task.ExitCode = res.ExitCode
		task.Warnings = countWarnings(res.CombinedOutput())
	}

	// A task interrupted by an abort elsewhere in the wave settles as
	// Skipped: its failure is an artifact of termination, not its own.
	if launchErr == nil && res.ExitCode != 0 && !res.TimedOut && runCtx.Err() != nil {
		task.Outcome = report.OutcomeSkipped
		task.SkipReason = "run aborted"
		o.settle(state, agg, task)
		return
	}

	cls := o.classifier.Classify(res, launchErr)
	task.Outcome = cls.Outcome
	task.Category = string(cls.Category)

	switch cls.Outcome {
	case report.OutcomeSucceeded:
		slog.Info("Package documentation built", "package", name, "duration", task.Duration)
	case report.OutcomeFailedFatal:
		slog.Error("Compiler tooling unusable, aborting run", "package", name, "error", launchErr)
		task.OutputTail = tail(combinedOrError(res, launchErr))
		state.markAborted()
		cancelRun()
	default:
		task.OutputTail = tail(res.CombinedOutput())
		if cls.Category == classify.CategoryImportOrDependency {
			// An import failure while compiling docs often flags a real
			// code defect, not a docs problem.
			slog.Warn("Package build failed resolving imports or dependencies, possible code defect",
				"package", name, "exit_code", res.ExitCode)
		} else {
			slog.Warn("Package build failed", "package", name, "category", task.Category, "exit_code", res.ExitCode)
		}
	}
	o.settle(state, agg, task)
}

// settle records the terminal state exactly once and notifies listeners.
func (o *Orchestrator) settle(state *runState, agg *report.Aggregator, task report.Task) {
	state.setStatus(task.Package, task.Outcome)
	agg.Record(task)
	o.publisher.TaskSettled(agg.RunID(), task)
}

// skipRemaining marks all tasks in the remaining waves as skipped.
func (o *Orchestrator) skipRemaining(waves [][]string, firstWave int, state *runState, agg *report.Aggregator, reason string) {
	for i, wave := range waves {
		for _, name := range wave {
			if state.status(name).Terminal() {
				continue
			}
			o.settle(state, agg, report.Task{
				Package:    name,
				Wave:       firstWave + i,
				Outcome:    report.OutcomeSkipped,
				SkipReason: reason,
			})
		}
	}
}

// countWarnings counts warning lines in the compiler output. Warnings never
// change an outcome, but trend reporting over them catches docs rot early.
func countWarnings(output string) int {
	if output == "" {
		return 0
	}
	n := 0
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(strings.ToLower(line), "warning") {
			n++
		}
	}
	return n
}

func tail(s string) string {
	if len(s) <= outputTailLimit {
		return s
	}
	return s[len(s)-outputTailLimit:]
}

func combinedOrError(res *compiler.Result, launchErr error) string {
	if res != nil {
		return res.CombinedOutput()
	}
	if launchErr != nil {
		return launchErr.Error()
	}
	return ""
}
