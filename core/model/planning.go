package model

import "time"

// PlanningStatus tracks an auto-planning session.
type PlanningStatus string

const (
	PlanningInProgress PlanningStatus = "IN_PROGRESS"
	PlanningCompleted  PlanningStatus = "COMPLETED"
	PlanningFailed     PlanningStatus = "FAILED"
	PlanningAccepted   PlanningStatus = "ACCEPTED"
	PlanningRejected   PlanningStatus = "REJECTED"
)

// Decided reports whether the session has reached a terminal decision.
func (s PlanningStatus) Decided() bool {
	return s == PlanningAccepted || s == PlanningRejected || s == PlanningFailed
}

// CandidateRoute is a proposed route inside a planning session. It has the
// shape of a Route but is not committed until the session is accepted.
type CandidateRoute struct {
	DriverID             string   `json:"driver_id"`
	VehicleID            string   `json:"vehicle_id"`
	OrderIDs             []string `json:"order_ids"` // in stop sequence
	TotalDistanceKm      float64  `json:"total_distance_km"`
	EstimatedTimeMinutes int      `json:"estimated_time_minutes"`
}

// PlanningSession is an auto-planning proposal awaiting a dispatcher
// decision. A session never mutates committed state until accepted.
type PlanningSession struct {
	ID           string           `json:"id"`
	Status       PlanningStatus   `json:"status"`
	PlanningDate time.Time        `json:"planning_date"`
	OrderIDs     []string         `json:"order_ids"` // the requested pool
	Routes       []CandidateRoute `json:"routes,omitempty"`
	Reason       string           `json:"reason,omitempty"` // set when FAILED
	RequestedBy  string           `json:"requested_by,omitempty"`
	Consumed     bool             `json:"consumed"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at,omitempty"`
}

// PlanningEvent records one session status transition.
type PlanningEvent struct {
	PlanningID   string         `json:"planning_id"`
	Status       PlanningStatus `json:"status"`
	PlanningDate time.Time      `json:"planning_date"`
	Time         time.Time      `json:"time"`
}
