package model

import (
	"fmt"
	"time"
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderConfirmed  OrderStatus = "CONFIRMED"
	OrderAssigned   OrderStatus = "ASSIGNED"
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// Cancellable reports whether an order in this status may still be cancelled.
// Cargo already moving (IN_PROGRESS) is not cancellable.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderConfirmed || s == OrderAssigned
}

// Order is a single shipment request from a client.
type Order struct {
	ID       string  `json:"id"`
	ClientID string  `json:"client_id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`

	// Pickup point.
	PickupLocation string    `json:"pickup_location"`
	PickupAddress  string    `json:"pickup_address"`
	PickupDate     time.Time `json:"pickup_date"`

	// Delivery point.
	DeliveryLocation string    `json:"delivery_location"`
	DeliveryAddress  string    `json:"delivery_address"`
	DeliveryDeadline time.Time `json:"delivery_deadline"`

	// Cargo details. VehicleType is the smallest class able to carry the
	// cargo unless the client required a specific one.
	VehicleType VehicleType `json:"vehicle_type"`
	CargoWeight float64     `json:"cargo_weight"` // kg
	Description string      `json:"description,omitempty"`

	Status OrderStatus `json:"status"`

	// Assignment, set when the order joins a route.
	RouteID       string `json:"route_id,omitempty"`
	DriverID      string `json:"driver_id,omitempty"`
	OrderSequence int    `json:"order_sequence"` // position within the route

	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
	ConfirmedAt        time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
}

// Assigned reports whether the order is attached to a route.
func (o Order) Assigned() bool { return o.RouteID != "" }

// Validate checks the order invariants: positive cargo weight within the
// fleet ceiling, the required vehicle type able to carry the cargo, and the
// pickup date not after the delivery deadline.
func (o Order) Validate() error {
	if o.CargoWeight <= 0 {
		return fmt.Errorf("%w: cargo weight must be positive", ErrInvalidInput)
	}
	if o.CargoWeight > MaxCargoWeight {
		return fmt.Errorf("%w: cargo weight %.0f kg exceeds the %v kg maximum", ErrInvalidInput, o.CargoWeight, MaxCargoWeight)
	}
	if o.CargoWeight > o.VehicleType.MaxWeight() {
		return fmt.Errorf("%w: cargo weight %.0f kg exceeds %s ceiling", ErrInvalidInput, o.CargoWeight, o.VehicleType)
	}
	if o.PickupLocation == "" || o.DeliveryLocation == "" {
		return fmt.Errorf("%w: pickup and delivery locations are required", ErrInvalidInput)
	}
	if Day(o.PickupDate).After(Day(o.DeliveryDeadline)) {
		return fmt.Errorf("%w: pickup date is after the delivery deadline", ErrInvalidInput)
	}
	return nil
}

// EligibleFor reports whether the order can ride a route on the given date:
// pickup falls on or before the route date, delivery deadline on or after.
func (o Order) EligibleFor(date time.Time) bool {
	d := Day(date)
	return !Day(o.PickupDate).After(d) && !d.After(Day(o.DeliveryDeadline))
}

// Day truncates a timestamp to its calendar date in UTC. Route scheduling is
// date-granular; all per-date comparisons go through this.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same calendar date.
func SameDay(a, b time.Time) bool { return Day(a).Equal(Day(b)) }
