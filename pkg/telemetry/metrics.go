package telemetry

import (
	"context"

	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink counts events in Prometheus collectors
type MetricsSink struct {
	events     *prometheus.CounterVec
	calls      *prometheus.CounterVec
	failures   *prometheus.CounterVec
	confidence *prometheus.HistogramVec
}

// NewMetricsSink creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	s := &MetricsSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "convene",
			Name:      "events_total",
			Help:      "Pipeline events by kind.",
		}, []string{"kind"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "convene",
			Name:      "collaborator_calls_total",
			Help:      "Collaborator invocations by agent.",
		}, []string{"agent"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "convene",
			Name:      "collaborator_failures_total",
			Help:      "Collaborator responses degraded after a failure, by agent.",
		}, []string{"agent"}),
		confidence: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "convene",
			Name:      "collaborator_confidence",
			Help:      "Confidence reported by collaborators.",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
		}, []string{"agent"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{s.events, s.calls, s.failures, s.confidence} {
			if err := reg.Register(c); err != nil {
				return nil, goerr.Wrap(err, "failed to register telemetry collector")
			}
		}
	}
	return s, nil
}

func (s *MetricsSink) Emit(_ context.Context, ev Event) {
	s.events.WithLabelValues(string(ev.Kind)).Inc()

	switch ev.Kind {
	case KindCollaboratorInvoked:
		s.calls.WithLabelValues(string(ev.To)).Inc()
	case KindCollaboratorResponded:
		if ev.Failed {
			s.failures.WithLabelValues(string(ev.From)).Inc()
			return
		}
		s.confidence.WithLabelValues(string(ev.From)).Observe(ev.Confidence)
	}
}

// EventsFor returns the event counter of kind
func (s *MetricsSink) EventsFor(kind Kind) prometheus.Counter {
	return s.events.WithLabelValues(string(kind))
}

// CallsFor returns the invocation counter of agent
func (s *MetricsSink) CallsFor(agent model.Agent) prometheus.Counter {
	return s.calls.WithLabelValues(string(agent))
}

// FailuresFor returns the degraded response counter of agent
func (s *MetricsSink) FailuresFor(agent model.Agent) prometheus.Counter {
	return s.failures.WithLabelValues(string(agent))
}
