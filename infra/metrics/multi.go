package metrics

import coremetrics "github.com/fleetops/dispatchd/core/metrics"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlanningSession forwards to all sinks, returning the first error.
func (m *MultiSink) RecordPlanningSession(ev coremetrics.PlanningSessionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlanningSession(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordRouteCommit forwards commit events to sinks that support them.
func (m *MultiSink) RecordRouteCommit(ev coremetrics.RouteCommitEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.RouteCommitRecorder); ok {
			if err := rec.RecordRouteCommit(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOrderStatus forwards order transitions to sinks that support them.
func (m *MultiSink) RecordOrderStatus(ev coremetrics.OrderStatusEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.OrderStatusRecorder); ok {
			if err := rec.RecordOrderStatus(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRouteStatus forwards route transitions to sinks that support them.
func (m *MultiSink) RecordRouteStatus(ev coremetrics.RouteStatusEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.RouteStatusRecorder); ok {
			if err := rec.RecordRouteStatus(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
