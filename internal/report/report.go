// Package report accumulates per-package build results into the run-level
// BuildReport. The Aggregator is the single synchronized entry point for
// settled tasks; workers never share report state directly.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Outcome enumerates the BuildTask terminal and transient states.
type Outcome string

const (
	OutcomePending           Outcome = "pending"
	OutcomeRunning           Outcome = "running"
	OutcomeSucceeded         Outcome = "succeeded"
	OutcomeFailedRecoverable Outcome = "failed_recoverable"
	OutcomeFailedFatal       Outcome = "failed_fatal"
	OutcomeSkipped           Outcome = "skipped"
)

// Terminal reports whether the outcome is a settled state.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeSucceeded, OutcomeFailedRecoverable, OutcomeFailedFatal, OutcomeSkipped:
		return true
	}
	return false
}

// dependencySkipPrefix marks tasks skipped because a dependency did not
// build, as opposed to tasks skipped by a run abort.
const dependencySkipPrefix = "dependency failed: "

// DependencySkipReason formats the skip reason recorded for dependents of a
// failed or skipped package. SkippedForDependency keys off this prefix.
func DependencySkipReason(dependency string) string {
	return dependencySkipPrefix + dependency
}

// HubStatus is the hub assembly result for a run.
type HubStatus string

const (
	HubSucceeded HubStatus = "succeeded"
	HubFailed    HubStatus = "failed"
	HubSkipped   HubStatus = "skipped"
)

// Task is the settled record of one (package, wave) build. Owned by the
// worker that drove it until settlement; read-only afterwards.
type Task struct {
	Package    string        `json:"package"`
	Wave       int           `json:"wave"`
	Outcome    Outcome       `json:"outcome"`
	Category   string        `json:"category,omitempty"` // failure category, empty on success/skip
	ExitCode   int           `json:"exit_code"`
	Warnings   int           `json:"warnings,omitempty"` // warning lines in the captured output
	StartedAt  time.Time     `json:"started_at,omitempty"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	// SkipReason names the failed dependency for skipped tasks; remediation
	// for a skip is fixing that dependency, not this package.
	SkipReason string `json:"skip_reason,omitempty"`
	// OutputTail carries the end of the captured compiler output on failure.
	OutputTail string `json:"output_tail,omitempty"`
}

// BuildReport is the aggregate result of one orchestration run.
type BuildReport struct {
	SchemaVersion int             `json:"schema_version"`
	RunID         string          `json:"run_id"`
	Revision      string          `json:"revision,omitempty"` // monorepo HEAD, best effort
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	Duration      time.Duration   `json:"duration_ns"`
	Waves         [][]string      `json:"waves"`
	Tasks         []Task          `json:"tasks"`
	Counts        map[Outcome]int `json:"counts"`
	// FailureCategories counts direct failures by classifier category.
	FailureCategories map[string]int `json:"failure_categories,omitempty"`
	HubStatus         HubStatus      `json:"hub_status"`
	Aborted           bool           `json:"aborted"`
}

const schemaVersion = 1

// Succeeded returns the packages that built, in settlement order.
func (r *BuildReport) Succeeded() []Task { return r.byOutcome(OutcomeSucceeded) }

// FailedDirectly returns packages whose own build failed.
func (r *BuildReport) FailedDirectly() []Task {
	out := r.byOutcome(OutcomeFailedRecoverable)
	return append(out, r.byOutcome(OutcomeFailedFatal)...)
}

// SkippedForDependency returns packages skipped because a dependency failed.
// Tasks skipped for other reasons (run abort) are not included: their
// remediation path is different.
func (r *BuildReport) SkippedForDependency() []Task {
	var out []Task
	for _, t := range r.Tasks {
		if t.Outcome == OutcomeSkipped && strings.HasPrefix(t.SkipReason, dependencySkipPrefix) {
			out = append(out, t)
		}
	}
	return out
}

func (r *BuildReport) byOutcome(o Outcome) []Task {
	var out []Task
	for _, t := range r.Tasks {
		if t.Outcome == o {
			out = append(out, t)
		}
	}
	return out
}

// AllSucceeded reports whether every task reached OutcomeSucceeded.
func (r *BuildReport) AllSucceeded() bool {
	return len(r.Tasks) == r.Counts[OutcomeSucceeded]
}

// Persist writes the report as indented JSON, creating parent directories.
func (r *BuildReport) Persist(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	jb, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, append(jb, '\n'), 0o644)
}

// LoadReport reads a previously persisted report.
func LoadReport(path string) (*BuildReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r BuildReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}
