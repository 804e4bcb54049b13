// Package store defines the persistence contract for the dispatch
// coordination core and provides the in-memory reference implementation.
// Every multi-entity mutation is applied as a single atomic unit; the
// driver/vehicle-per-date uniqueness constraint is enforced inside the
// commit, not by the advisory availability queries.
package store

import (
	"context"
	"time"

	"github.com/fleetops/dispatchd/core/model"
)

// OrderFilter selects orders. Zero values match everything.
type OrderFilter struct {
	Status     model.OrderStatus
	ClientID   string
	DriverID   string
	Unassigned bool // only orders without a route
}

// RouteFilter selects routes. Zero values match everything.
type RouteFilter struct {
	Date     time.Time
	DriverID string
	Status   model.RouteStatus
}

// SessionFilter selects planning sessions. Zero values match everything.
type SessionFilter struct {
	Status     model.PlanningStatus
	Date       time.Time
	Unconsumed bool
}

// RouteCommit pairs a route with the fully updated state of the orders it
// assigns. The store persists both or neither.
type RouteCommit struct {
	Route  model.Route
	Orders []model.Order
}

// Store is the persistence boundary of the coordination core.
//
// CommitRoutes is the serialization point for route creation: inside its
// critical section the store re-verifies that every order is still
// CONFIRMED and unassigned and that neither the driver nor the vehicle
// holds another non-cancelled route on the route date, failing with
// model.ErrConcurrencyConflict otherwise.
type Store interface {
	// Orders.
	CreateOrder(ctx context.Context, o model.Order) (model.Order, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	UpdateOrder(ctx context.Context, o model.Order) (model.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]model.Order, error)

	// Drivers.
	PutDriver(ctx context.Context, d model.Driver) error
	GetDriver(ctx context.Context, id string) (model.Driver, error)
	ListDrivers(ctx context.Context) ([]model.Driver, error)

	// Vehicles. Registration numbers are unique.
	PutVehicle(ctx context.Context, v model.Vehicle) error
	GetVehicle(ctx context.Context, id string) (model.Vehicle, error)
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)

	// Schedules. Activating a schedule deactivates any previously active
	// one for the same driver, keeping at most one active per driver.
	PutSchedule(ctx context.Context, s model.DriverSchedule) error
	ActiveSchedule(ctx context.Context, driverID string) (model.DriverSchedule, error)
	ListActiveSchedules(ctx context.Context) ([]model.DriverSchedule, error)

	// Routes. The Has* queries report whether any non-cancelled route
	// occupies the driver or vehicle on the date.
	GetRoute(ctx context.Context, id string) (model.Route, error)
	ListRoutes(ctx context.Context, f RouteFilter) ([]model.Route, error)
	HasActiveRouteForDriver(ctx context.Context, driverID string, date time.Time) (bool, error)
	HasActiveRouteForVehicle(ctx context.Context, vehicleID string, date time.Time) (bool, error)
	CommitRoutes(ctx context.Context, commits []RouteCommit) ([]model.Route, error)
	// UpdateRouteAndOrders applies a route mutation together with order
	// mutations atomically (route cancel, order detach, completion).
	UpdateRouteAndOrders(ctx context.Context, r model.Route, orders []model.Order) error

	// Planning sessions.
	CreateSession(ctx context.Context, s model.PlanningSession) (model.PlanningSession, error)
	GetSession(ctx context.Context, id string) (model.PlanningSession, error)
	UpdateSession(ctx context.Context, s model.PlanningSession) (model.PlanningSession, error)
	ListSessions(ctx context.Context, f SessionFilter) ([]model.PlanningSession, error)
}
