package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "progresa"

// Metrics are the counters of one run. Each Metrics has its own registry so
// runs, and tests, never share state.
type Metrics struct {
	Registry *prometheus.Registry

	// StepDuration tracks step run time by step.
	StepDuration *prometheus.HistogramVec
	// StepsTotal counts finished steps by step and result.
	StepsTotal *prometheus.CounterVec
	// Rows is the number of observations in the analysed dataset.
	Rows prometheus.Gauge
	// Coefficients counts the coefficients estimated by step.
	Coefficients *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "step_duration_seconds",
			Help:      "Analysis step duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}, []string{"step"}),
		StepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "steps_total",
			Help:      "Total analysis steps by step and result",
		}, []string{"step", "result"}),
		Rows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "dataset_rows",
			Help:      "Observations in the analysed dataset",
		}),
		Coefficients: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "coefficients_total",
			Help:      "Regression coefficients estimated by step",
		}, []string{"step"}),
	}
}

// WriteTextfile stores the current values in the Prometheus text format, as
// read by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

func (m *Metrics) observe(name string, r *Result, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.StepsTotal.WithLabelValues(name, "error").Inc()
		return
	}
	m.StepsTotal.WithLabelValues(name, "success").Inc()
	for _, model := range r.Models {
		m.Coefficients.WithLabelValues(name).Add(float64(len(model.Terms)))
	}
}
