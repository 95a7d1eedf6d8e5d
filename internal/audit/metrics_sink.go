package audit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/forgo/bastion/internal/model"
)

// MetricsSink counts events by category.
type MetricsSink struct {
	events *prometheus.CounterVec
}

// NewMetricsSink registers bastion_security_events_total on reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bastion_security_events_total",
			Help: "Total number of security events by category",
		},
		[]string{"category"},
	)
	if err := reg.Register(events); err != nil {
		return nil, err
	}
	return &MetricsSink{events: events}, nil
}

func (s *MetricsSink) Name() string { return "metrics" }

func (s *MetricsSink) Write(_ context.Context, ev model.SecurityEvent) error {
	s.events.WithLabelValues(string(ev.Category)).Inc()
	return nil
}
