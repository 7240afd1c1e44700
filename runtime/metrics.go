package runtime

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"

	modeLabelMock = "mock"
	modeLabelLive = "live"
)

// Metrics holds the Prometheus collectors for flow runs. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	runs         *prometheus.CounterVec
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	tokens       *prometheus.CounterVec
}

// NewMetrics registers the flow collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowforge_runs_total",
			Help: "Total flow runs by mode and outcome",
		}, []string{"mode", "outcome"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowforge_steps_total",
			Help: "Total executed flow steps by mode and outcome",
		}, []string{"mode", "outcome"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowforge_step_duration_seconds",
			Help:    "Flow step latency, including the provider call",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"mode"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowforge_tokens_total",
			Help: "Provider-reported tokens by model and direction",
		}, []string{"model", "direction"}),
	}
}

func (m *Metrics) observeRun(mock bool, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(modeLabel(mock), outcomeLabel(err)).Inc()
}

func (m *Metrics) observeStep(mock bool, started time.Time, res StepResult, err error) {
	if m == nil {
		return
	}
	mode := modeLabel(mock)
	m.steps.WithLabelValues(mode, outcomeLabel(err)).Inc()
	m.stepDuration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
	if err == nil && res.Tokens != nil {
		m.tokens.WithLabelValues(res.Model, "input").Add(float64(res.Tokens.Input))
		m.tokens.WithLabelValues(res.Model, "output").Add(float64(res.Tokens.Output))
	}
}

func modeLabel(mock bool) string {
	if mock {
		return modeLabelMock
	}
	return modeLabelLive
}

func outcomeLabel(err error) string {
	if err != nil {
		return outcomeFailure
	}
	return outcomeSuccess
}
