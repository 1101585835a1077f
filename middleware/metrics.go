package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shrek82/simplejorm/core"
)

// MetricsMiddleware records the latency of every store operation, in
// milliseconds, as a prometheus summary labelled by entity, relation,
// kind and status.
type MetricsMiddleware struct {
	Namespace  string
	Subsystem  string
	MetricName string
	Help       string
	Registerer prometheus.Registerer

	vector *prometheus.SummaryVec
}

func NewMetrics(namespace, subsystem string) *MetricsMiddleware {
	return &MetricsMiddleware{
		Namespace:  namespace,
		Subsystem:  subsystem,
		MetricName: "query_duration_ms",
		Help:       "Latency of simplejorm store operations in milliseconds.",
	}
}

func (m *MetricsMiddleware) Name() string {
	return "Metrics"
}

func (m *MetricsMiddleware) Init(db *core.DB) error {
	vector := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: m.Namespace,
		Subsystem: m.Subsystem,
		Name:      m.MetricName,
		Help:      m.Help,
		Objectives: map[float64]float64{
			0.5:   0.01,
			0.75:  0.01,
			0.90:  0.01,
			0.99:  0.001,
			0.999: 0.0001,
		},
	}, []string{"entity", "relation", "kind", "status"})

	reg := m.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(vector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
		existing, ok := are.ExistingCollector.(*prometheus.SummaryVec)
		if !ok {
			return err
		}
		vector = existing
	}
	m.vector = vector
	return nil
}

func (m *MetricsMiddleware) Shutdown() error {
	if m.vector == nil {
		return nil
	}
	reg := m.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.Unregister(m.vector)
	return nil
}

// Collector exposes the summary, mainly for tests.
func (m *MetricsMiddleware) Collector() prometheus.Collector {
	return m.vector
}

func (m *MetricsMiddleware) Process(ctx context.Context, op *core.Operation, next core.QueryFunc) (*core.Result, error) {
	if m.vector == nil {
		return next(ctx, op)
	}
	start := time.Now()
	res, err := next(ctx, op)

	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case res != nil && res.Cached:
		status = "cached"
	}
	m.vector.WithLabelValues(op.Entity, op.Relation, op.Kind.String(), status).
		Observe(float64(time.Since(start).Microseconds()) / 1000)
	return res, err
}
