// Package routes builds and operates delivery routes: the manual planning
// ladder, stop sequencing, travel estimation and the route lifecycle.
package routes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fleetops/dispatchd/core/availability"
	"github.com/fleetops/dispatchd/core/geo"
	"github.com/fleetops/dispatchd/core/logger"
	"github.com/fleetops/dispatchd/core/metrics"
	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/store"
)

// DefaultServiceTimeMinutes is the handling time budgeted at every stop.
const DefaultServiceTimeMinutes = 15

// Config tunes the planner.
type Config struct {
	// BaseLocation is the depot every route starts from.
	BaseLocation string `json:"base_location" yaml:"base_location"`
	// ServiceTimeMinutes is the per-stop handling time.
	ServiceTimeMinutes int `json:"service_time_minutes" yaml:"service_time_minutes"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ServiceTimeMinutes <= 0 {
		c.ServiceTimeMinutes = DefaultServiceTimeMinutes
	}
}

// Planner validates and builds routes. PlanRoute commits immediately;
// Prepare returns an uncommitted route so callers can batch several routes
// into one atomic commit.
type Planner struct {
	store     store.Store
	resolver  *availability.Resolver
	estimator geo.RouteEstimator
	sink      metrics.MetricsSink
	log       logger.Logger
	cfg       Config
}

// NewPlanner creates a Planner.
func NewPlanner(st store.Store, resolver *availability.Resolver, estimator geo.RouteEstimator, sink metrics.MetricsSink, log logger.Logger, cfg Config) *Planner {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Planner{store: st, resolver: resolver, estimator: estimator, sink: sink, log: log, cfg: cfg}
}

// PlanInput describes one requested route.
type PlanInput struct {
	DriverID  string
	VehicleID string
	RouteDate time.Time
	OrderIDs  []string
}

// PlanRoute runs the full validation ladder and commits the route. The store
// re-checks driver and vehicle uniqueness inside the commit, so losing a race
// surfaces as model.ErrConcurrencyConflict.
func (p *Planner) PlanRoute(ctx context.Context, in PlanInput) (model.Route, error) {
	commit, err := p.Prepare(ctx, in)
	if err != nil {
		return model.Route{}, err
	}
	created, err := p.store.CommitRoutes(ctx, []store.RouteCommit{commit})
	if err != nil {
		return model.Route{}, err
	}
	r := created[0]
	p.log.Infof("route %s planned: driver %s, vehicle %s, %d orders, %.1f km",
		r.ID, r.DriverID, r.VehicleID, len(r.OrderIDs), r.TotalDistanceKm)
	p.emitCommit("manual", created, len(r.OrderIDs))
	return r, nil
}

// Prepare validates the request and builds the route and its order updates
// without committing anything.
//
// The ladder, in order: orders must be CONFIRMED, unassigned and eligible for
// the date; the driver must be available; the vehicle must be available and
// the driver licensed for it; the summed cargo weight must fit the vehicle.
func (p *Planner) Prepare(ctx context.Context, in PlanInput) (store.RouteCommit, error) {
	if len(in.OrderIDs) == 0 {
		return store.RouteCommit{}, fmt.Errorf("%w: a route needs at least one order", model.ErrInvalidInput)
	}
	date := model.Day(in.RouteDate)

	orders := make([]model.Order, 0, len(in.OrderIDs))
	for _, id := range in.OrderIDs {
		o, err := p.store.GetOrder(ctx, id)
		if err != nil {
			return store.RouteCommit{}, err
		}
		if o.Status != model.OrderConfirmed {
			return store.RouteCommit{}, fmt.Errorf("%w: order %s is %s, expected %s", model.ErrOrderNotEligible, id, o.Status, model.OrderConfirmed)
		}
		if o.Assigned() {
			return store.RouteCommit{}, fmt.Errorf("%w: order %s is already on route %s", model.ErrOrderNotEligible, id, o.RouteID)
		}
		if !o.EligibleFor(date) {
			return store.RouteCommit{}, fmt.Errorf("%w: order %s window does not cover %s", model.ErrOrderNotEligible, id, date.Format(time.DateOnly))
		}
		orders = append(orders, o)
	}

	vehicle, err := p.store.GetVehicle(ctx, in.VehicleID)
	if err != nil {
		return store.RouteCommit{}, err
	}
	driver, err := p.store.GetDriver(ctx, in.DriverID)
	if err != nil {
		return store.RouteCommit{}, err
	}
	if !driver.CanDrive(vehicle.Type) {
		return store.RouteCommit{}, fmt.Errorf("%w: driver %s is not licensed for %s", model.ErrResourceUnavailable, driver.ID, vehicle.Type)
	}
	if ok, err := p.resolver.DriverAvailable(ctx, in.DriverID, date, nil); err != nil {
		return store.RouteCommit{}, err
	} else if !ok {
		return store.RouteCommit{}, fmt.Errorf("%w: driver %s is not available on %s", model.ErrResourceUnavailable, in.DriverID, date.Format(time.DateOnly))
	}
	if ok, err := p.resolver.VehicleAvailable(ctx, in.VehicleID, date, 0); err != nil {
		return store.RouteCommit{}, err
	} else if !ok {
		return store.RouteCommit{}, fmt.Errorf("%w: vehicle %s is not available on %s", model.ErrResourceUnavailable, in.VehicleID, date.Format(time.DateOnly))
	}

	total := model.TotalCargoWeight(orders)
	if total > vehicle.MaxWeight() {
		return store.RouteCommit{}, fmt.Errorf("%w: %.0f kg exceeds the %.0f kg ceiling of vehicle %s",
			model.ErrCapacityExceeded, total, vehicle.MaxWeight(), vehicle.ID)
	}

	sequenced := p.sequence(ctx, orders)
	est, err := p.estimate(ctx, sequenced)
	if err != nil {
		return store.RouteCommit{}, err
	}

	route := model.Route{
		DriverID:             in.DriverID,
		VehicleID:            in.VehicleID,
		RouteDate:            date,
		Status:               model.RoutePlanned,
		TotalDistanceKm:      est.TotalDistanceKm,
		EstimatedTimeMinutes: est.EstimatedMinutes,
	}
	updates := make([]model.Order, 0, len(sequenced))
	for i, o := range sequenced {
		route.OrderIDs = append(route.OrderIDs, o.ID)
		o.Status = model.OrderAssigned
		o.DriverID = in.DriverID
		o.OrderSequence = i + 1
		updates = append(updates, o)
	}
	return store.RouteCommit{Route: route, Orders: updates}, nil
}

// CommitPrepared commits a batch of prepared routes atomically. Either every
// route in the batch is created or none are.
func (p *Planner) CommitPrepared(ctx context.Context, commits []store.RouteCommit, source string) ([]model.Route, error) {
	created, err := p.store.CommitRoutes(ctx, commits)
	if err != nil {
		return nil, err
	}
	var orderCount int
	for _, c := range commits {
		orderCount += len(c.Orders)
	}
	p.emitCommit(source, created, orderCount)
	return created, nil
}

// sequence orders the stops greedily: from the current position always drive
// to the nearest next pickup, ties broken by order ID for determinism.
func (p *Planner) sequence(ctx context.Context, orders []model.Order) []model.Order {
	remaining := make([]model.Order, len(orders))
	copy(remaining, orders)
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].ID < remaining[j].ID })

	out := make([]model.Order, 0, len(remaining))
	pos := p.cfg.BaseLocation
	for len(remaining) > 0 {
		best := 0
		bestKm := p.legDistance(ctx, pos, remaining[0].PickupLocation)
		for i := 1; i < len(remaining); i++ {
			if km := p.legDistance(ctx, pos, remaining[i].PickupLocation); km < bestKm {
				best, bestKm = i, km
			}
		}
		next := remaining[best]
		out = append(out, next)
		pos = next.DeliveryLocation
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out
}

func (p *Planner) legDistance(ctx context.Context, from, to string) float64 {
	if p.estimator == nil || from == "" {
		return 0
	}
	leg, err := p.estimator.Distance(ctx, from, to)
	if err != nil {
		return 0
	}
	return leg.DistanceKm
}

// estimate totals travel over base -> pickup -> delivery per stop, adding the
// configured service time at every pickup and delivery.
func (p *Planner) estimate(ctx context.Context, sequenced []model.Order) (geo.Estimate, error) {
	var est geo.Estimate
	if p.estimator == nil {
		est.EstimatedMinutes = 2 * len(sequenced) * p.cfg.ServiceTimeMinutes
		return est, nil
	}
	pos := p.cfg.BaseLocation
	for _, o := range sequenced {
		for _, stop := range []string{o.PickupLocation, o.DeliveryLocation} {
			if pos != "" {
				leg, err := p.estimator.Distance(ctx, pos, stop)
				if err != nil {
					return geo.Estimate{}, fmt.Errorf("%w: %v", model.ErrPlanningFailed, err)
				}
				est.TotalDistanceKm += leg.DistanceKm
				est.EstimatedMinutes += leg.DurationMinutes
			}
			est.EstimatedMinutes += p.cfg.ServiceTimeMinutes
			pos = stop
		}
	}
	return est, nil
}

// Candidate sequences and estimates a proposed route without validating or
// committing anything. The auto-planning engine uses it to shape proposals;
// full validation runs again when a proposal is accepted.
func (p *Planner) Candidate(ctx context.Context, driverID, vehicleID string, orders []model.Order) (model.CandidateRoute, error) {
	sequenced := p.sequence(ctx, orders)
	est, err := p.estimate(ctx, sequenced)
	if err != nil {
		return model.CandidateRoute{}, err
	}
	c := model.CandidateRoute{
		DriverID:             driverID,
		VehicleID:            vehicleID,
		TotalDistanceKm:      est.TotalDistanceKm,
		EstimatedTimeMinutes: est.EstimatedMinutes,
	}
	for _, o := range sequenced {
		c.OrderIDs = append(c.OrderIDs, o.ID)
	}
	return c, nil
}

// Recalculate refreshes a route's estimates over the given remaining orders,
// assumed already in stop sequence.
func (p *Planner) Recalculate(ctx context.Context, r model.Route, orders []model.Order) (model.Route, error) {
	est, err := p.estimate(ctx, orders)
	if err != nil {
		return model.Route{}, err
	}
	r.TotalDistanceKm = est.TotalDistanceKm
	r.EstimatedTimeMinutes = est.EstimatedMinutes
	return r, nil
}

func (p *Planner) emitCommit(source string, routes []model.Route, orderCount int) {
	if rec, ok := p.sink.(metrics.RouteCommitRecorder); ok {
		var km float64
		var date time.Time
		for _, r := range routes {
			km += r.TotalDistanceKm
			date = r.RouteDate
		}
		ev := metrics.RouteCommitEvent{
			RouteDate:       date,
			Source:          source,
			Routes:          len(routes),
			Orders:          orderCount,
			TotalDistanceKm: km,
			Time:            time.Now().UTC(),
		}
		if err := rec.RecordRouteCommit(ev); err != nil {
			p.log.Warnf("route commit metrics: %v", err)
		}
	}
}
