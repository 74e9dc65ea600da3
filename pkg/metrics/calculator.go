package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CalculatorMetrics records outcomes of financing computations.
type CalculatorMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewCalculatorMetrics registers the calculator metrics on the provided registerer.
func NewCalculatorMetrics(reg prometheus.Registerer) *CalculatorMetrics {
	if reg == nil {
		return &CalculatorMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calculator_op_duration_seconds",
		Help:    "Duration of financing calculator operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calculator_op_success",
		Help: "Successful financing calculator operations.",
	}, []string{"op"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calculator_op_failure",
		Help: "Failed financing calculator operations.",
	}, []string{"op"})
	reg.MustRegister(duration, success, failure)
	return &CalculatorMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named operation.
func (c *CalculatorMetrics) ObserveDuration(op string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (c *CalculatorMetrics) IncSuccess(op string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(op).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (c *CalculatorMetrics) IncFailure(op string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(op).Inc()
}

// Observe wraps an operation outcome in one call.
func (c *CalculatorMetrics) Observe(op string, started time.Time, err error) {
	c.ObserveDuration(op, time.Since(started))
	if err != nil {
		c.IncFailure(op)
		return
	}
	c.IncSuccess(op)
}
