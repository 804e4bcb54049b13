package metrics

import (
	coremetrics "github.com/fleetops/dispatchd/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records planning and route events in Prometheus metrics.
type PromSink struct {
	sessions *prometheus.CounterVec
	duration prometheus.Histogram
	commits  *prometheus.CounterVec
	distance prometheus.Histogram
	orders   *prometheus.CounterVec
	routes   *prometheus.CounterVec
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planning_sessions_total",
		Help: "Automatic planning sessions by final status",
	}, []string{"status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planning_duration_seconds",
		Help:    "Wall time of automatic planning sessions",
		Buckets: prometheus.DefBuckets,
	})
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routes_committed_total",
		Help: "Routes committed to operation",
	}, []string{"source"})
	distance := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "route_commit_distance_km",
		Help:    "Total distance of committed route batches",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000},
	})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status transitions",
	}, []string{"to"})
	routes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "route_status_transitions_total",
		Help: "Route status transitions",
	}, []string{"to"})

	s := &PromSink{sessions: sessions, duration: duration, commits: commits, distance: distance, orders: orders, routes: routes}
	for _, c := range []prometheus.Collector{sessions, duration, commits, distance, orders, routes} {
		if err := register(reg, c, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector, s *PromSink) error {
	err := reg.Register(c)
	if err == nil {
		return nil
	}
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		return err
	}
	switch existing := are.ExistingCollector.(type) {
	case *prometheus.CounterVec:
		switch c {
		case s.sessions:
			s.sessions = existing
		case s.commits:
			s.commits = existing
		case s.orders:
			s.orders = existing
		case s.routes:
			s.routes = existing
		}
	case prometheus.Histogram:
		switch c {
		case s.duration:
			s.duration = existing
		case s.distance:
			s.distance = existing
		}
	}
	return nil
}

// RecordPlanningSession increments the session counter and observes duration.
func (s *PromSink) RecordPlanningSession(ev coremetrics.PlanningSessionEvent) error {
	s.sessions.WithLabelValues(ev.Status).Inc()
	if ev.Duration > 0 {
		s.duration.Observe(ev.Duration.Seconds())
	}
	return nil
}

// RecordRouteCommit counts committed routes and observes batch distance.
func (s *PromSink) RecordRouteCommit(ev coremetrics.RouteCommitEvent) error {
	s.commits.WithLabelValues(ev.Source).Add(float64(ev.Routes))
	s.distance.Observe(ev.TotalDistanceKm)
	return nil
}

// RecordOrderStatus counts order status transitions.
func (s *PromSink) RecordOrderStatus(ev coremetrics.OrderStatusEvent) error {
	s.orders.WithLabelValues(ev.To).Inc()
	return nil
}

// RecordRouteStatus counts route status transitions.
func (s *PromSink) RecordRouteStatus(ev coremetrics.RouteStatusEvent) error {
	s.routes.WithLabelValues(ev.To).Inc()
	return nil
}
