package model

import "time"

// RouteStatus tracks a route through its lifecycle.
type RouteStatus string

const (
	RoutePlanned    RouteStatus = "PLANNED"
	RouteInProgress RouteStatus = "IN_PROGRESS"
	RouteCompleted  RouteStatus = "COMPLETED"
	RouteCancelled  RouteStatus = "CANCELLED"
)

// Active reports whether the route still occupies its driver and vehicle for
// the route date.
func (s RouteStatus) Active() bool {
	return s == RoutePlanned || s == RouteInProgress
}

// Route is a driver+vehicle+date grouping of orders.
type Route struct {
	ID        string    `json:"id"`
	DriverID  string    `json:"driver_id"`
	VehicleID string    `json:"vehicle_id"`
	RouteDate time.Time `json:"route_date"`

	// OrderIDs holds the order identifiers in stop sequence.
	OrderIDs []string `json:"order_ids"`

	TotalDistanceKm      float64     `json:"total_distance_km"`
	EstimatedTimeMinutes int         `json:"estimated_time_minutes"`
	Status               RouteStatus `json:"status"`
	CreatedAt            time.Time   `json:"created_at"`
}

// RemoveOrder drops the order from the route's stop sequence. It reports
// whether the order was present.
func (r *Route) RemoveOrder(orderID string) bool {
	for i, id := range r.OrderIDs {
		if id == orderID {
			r.OrderIDs = append(r.OrderIDs[:i], r.OrderIDs[i+1:]...)
			return true
		}
	}
	return false
}

// TotalCargoWeight sums the cargo weight of the given orders.
func TotalCargoWeight(orders []Order) float64 {
	var sum float64
	for _, o := range orders {
		sum += o.CargoWeight
	}
	return sum
}
