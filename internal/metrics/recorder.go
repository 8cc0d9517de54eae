// Package metrics defines observability hooks for orchestration runs.
package metrics

import "time"

// Recorder defines observability hooks for run and task metrics.
// Implementations must tolerate concurrent calls; the NoopRecorder allows
// optional injection without nil checks at call sites.
type Recorder interface {
	ObserveTaskDuration(pkg string, d time.Duration, success bool)
	IncTaskOutcome(outcome string)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome string) // outcome: success|partial|aborted
	SetWaveConcurrency(n int)
	ObserveHubDuration(d time.Duration, success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncTaskOutcome(string)                          {}
func (NoopRecorder) ObserveRunDuration(time.Duration)               {}
func (NoopRecorder) IncRunOutcome(string)                           {}
func (NoopRecorder) SetWaveConcurrency(int)                         {}
func (NoopRecorder) ObserveHubDuration(time.Duration, bool)         {}
