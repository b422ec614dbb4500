package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "pursloader"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	stageDuration   *prom.HistogramVec
	stageResults    *prom.CounterVec
	requestOutcomes *prom.CounterVec
	recoveries      prom.Counter
	connects        *prom.CounterVec
	queueDepth      prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of compile, bundle, load and rebuild stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.requestOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Settled module requests by build mode and outcome",
		}, []string{"mode", "result"})
		pr.recoveries = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_module_recoveries_total",
			Help:      "Full recompiles triggered by an unknown-module rebuild response",
		})
		pr.connects = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "ide_connect_attempts_total",
			Help:      "IDE server connection attempts by result",
		}, []string{"result"})
		pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "deferred_queue_depth",
			Help:      "Requests waiting on the current compile generation",
		})
		reg.MustRegister(pr.stageDuration, pr.stageResults, pr.requestOutcomes, pr.recoveries, pr.connects, pr.queueDepth)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRequestOutcome(mode string, result ResultLabel) {
	if p == nil || p.requestOutcomes == nil {
		return
	}
	p.requestOutcomes.WithLabelValues(mode, string(result)).Inc()
}

func (p *PrometheusRecorder) IncUnknownModuleRecovery() {
	if p == nil || p.recoveries == nil {
		return
	}
	p.recoveries.Inc()
}

func (p *PrometheusRecorder) IncConnectAttempt(success bool) {
	if p == nil || p.connects == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.connects.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}
