package metrics

import (
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	taskDuration    *prom.HistogramVec
	taskOutcomes    *prom.CounterVec
	runDuration     prom.Histogram
	runOutcomes     *prom.CounterVec
	waveConcurrency prom.Gauge
	hubDuration     *prom.HistogramVec
}

// NewPrometheusRecorder constructs a recorder and registers its metrics.
// Register against a fresh registry per recorder; re-registering the same
// metric names on one registry panics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.taskDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "dochub",
		Name:      "task_duration_seconds",
		Help:      "Duration of individual package documentation builds",
		Buckets:   prom.DefBuckets,
	}, []string{"package", "success"})
	pr.taskOutcomes = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "dochub",
		Name:      "task_outcomes_total",
		Help:      "Package build task counts by terminal outcome",
	}, []string{"outcome"})
	pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "dochub",
		Name:      "run_duration_seconds",
		Help:      "Total orchestration run duration",
		Buckets:   prom.DefBuckets,
	})
	pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "dochub",
		Name:      "run_outcomes_total",
		Help:      "Orchestration run outcomes by final status",
	}, []string{"outcome"})
	pr.waveConcurrency = prom.NewGauge(prom.GaugeOpts{
		Namespace: "dochub",
		Name:      "wave_concurrency",
		Help:      "Worker pool size used for the most recent wave",
	})
	pr.hubDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "dochub",
		Name:      "hub_duration_seconds",
		Help:      "Duration of hub assembly including the hub compiler pass",
		Buckets:   prom.DefBuckets,
	}, []string{"success"})
	reg.MustRegister(pr.taskDuration, pr.taskOutcomes, pr.runDuration, pr.runOutcomes, pr.waveConcurrency, pr.hubDuration)
	return pr
}

func (p *PrometheusRecorder) ObserveTaskDuration(pkg string, d time.Duration, success bool) {
	if p == nil || p.taskDuration == nil {
		return
	}
	p.taskDuration.WithLabelValues(pkg, strconv.FormatBool(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskOutcome(outcome string) {
	if p == nil || p.taskOutcomes == nil {
		return
	}
	p.taskOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetWaveConcurrency(n int) {
	if p == nil || p.waveConcurrency == nil {
		return
	}
	p.waveConcurrency.Set(float64(n))
}

func (p *PrometheusRecorder) ObserveHubDuration(d time.Duration, success bool) {
	if p == nil || p.hubDuration == nil {
		return
	}
	p.hubDuration.WithLabelValues(strconv.FormatBool(success)).Observe(d.Seconds())
}
