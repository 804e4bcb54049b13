// Package metrics defines the recorder contracts for dispatch observability.
// Sinks live in infra/metrics; core packages only emit events.
package metrics

import "time"

// PlanningSessionEvent captures the outcome of an automatic planning run.
type PlanningSessionEvent struct {
	PlanningID string
	Status     string
	RouteDate  time.Time
	Orders     int
	Routes     int
	Duration   time.Duration
	Time       time.Time
}

// MetricsSink records planning session outcomes for observability purposes.
type MetricsSink interface {
	RecordPlanningSession(ev PlanningSessionEvent) error
}

// RouteCommitEvent captures a batch of routes becoming operational.
type RouteCommitEvent struct {
	RouteDate       time.Time
	Source          string // "manual" or "auto"
	Routes          int
	Orders          int
	TotalDistanceKm float64
	Time            time.Time
}

// RouteCommitRecorder records committed route batches.
type RouteCommitRecorder interface {
	RecordRouteCommit(ev RouteCommitEvent) error
}

// OrderStatusEvent is a single order status transition.
type OrderStatusEvent struct {
	OrderID string
	From    string
	To      string
	Time    time.Time
}

// OrderStatusRecorder records order status transitions.
type OrderStatusRecorder interface {
	RecordOrderStatus(ev OrderStatusEvent) error
}

// RouteStatusEvent is a single route status transition.
type RouteStatusEvent struct {
	RouteID  string
	DriverID string
	From     string
	To       string
	Time     time.Time
}

// RouteStatusRecorder records route status transitions.
type RouteStatusRecorder interface {
	RecordRouteStatus(ev RouteStatusEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlanningSession(PlanningSessionEvent) error { return nil }
func (NopSink) RecordRouteCommit(RouteCommitEvent) error         { return nil }
func (NopSink) RecordOrderStatus(OrderStatusEvent) error         { return nil }
func (NopSink) RecordRouteStatus(RouteStatusEvent) error         { return nil }
