package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	coremetrics "github.com/fleetops/dispatchd/core/metrics"
)

// captureSink implements every recorder and remembers what it saw.
type captureSink struct {
	sessions []coremetrics.PlanningSessionEvent
	commits  []coremetrics.RouteCommitEvent
	orders   []coremetrics.OrderStatusEvent
	routes   []coremetrics.RouteStatusEvent
	err      error
}

func (c *captureSink) RecordPlanningSession(ev coremetrics.PlanningSessionEvent) error {
	c.sessions = append(c.sessions, ev)
	return c.err
}

func (c *captureSink) RecordRouteCommit(ev coremetrics.RouteCommitEvent) error {
	c.commits = append(c.commits, ev)
	return c.err
}

func (c *captureSink) RecordOrderStatus(ev coremetrics.OrderStatusEvent) error {
	c.orders = append(c.orders, ev)
	return c.err
}

func (c *captureSink) RecordRouteStatus(ev coremetrics.RouteStatusEvent) error {
	c.routes = append(c.routes, ev)
	return c.err
}

// sessionOnlySink implements just the mandatory MetricsSink surface.
type sessionOnlySink struct {
	sessions int
}

func (s *sessionOnlySink) RecordPlanningSession(coremetrics.PlanningSessionEvent) error {
	s.sessions++
	return nil
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	narrow := &sessionOnlySink{}
	m := NewMultiSink(a, b, narrow)

	require.NoError(t, m.RecordPlanningSession(coremetrics.PlanningSessionEvent{PlanningID: "s1"}))
	require.NoError(t, m.RecordRouteCommit(coremetrics.RouteCommitEvent{Source: "auto"}))
	require.NoError(t, m.RecordOrderStatus(coremetrics.OrderStatusEvent{OrderID: "o1"}))
	require.NoError(t, m.RecordRouteStatus(coremetrics.RouteStatusEvent{RouteID: "r1"}))

	for _, c := range []*captureSink{a, b} {
		require.Len(t, c.sessions, 1)
		require.Len(t, c.commits, 1)
		require.Len(t, c.orders, 1)
		require.Len(t, c.routes, 1)
	}
	// The narrow sink only sees what it can record.
	require.Equal(t, 1, narrow.sessions)
}

func TestMultiSinkReturnsFirstError(t *testing.T) {
	boom := errors.New("sink down")
	m := NewMultiSink(&captureSink{err: boom}, &captureSink{})
	err := m.RecordPlanningSession(coremetrics.PlanningSessionEvent{})
	require.ErrorIs(t, err, boom)
}

func TestNewSinkSelection(t *testing.T) {
	sink, err := NewSink(coremetrics.Config{})
	require.NoError(t, err)
	require.IsType(t, coremetrics.NopSink{}, sink)

	sink, err = NewSink(coremetrics.Config{Prometheus: coremetrics.PrometheusConfig{Enabled: true}})
	require.NoError(t, err)
	require.IsType(t, &PromSink{}, sink)
}
