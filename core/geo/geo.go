// Package geo declares the geographic capabilities the coordination core
// consumes from collaborators: leg distance/duration estimation and address
// validation. Transport and provider details stay behind these interfaces.
package geo

import "context"

// Leg is the travel estimate between two locations.
type Leg struct {
	DistanceKm      float64
	DurationMinutes int
}

// Estimate aggregates a full stop sequence.
type Estimate struct {
	TotalDistanceKm  float64
	EstimatedMinutes int
}

// RouteEstimator returns travel estimates between locations.
type RouteEstimator interface {
	// Distance returns the travel estimate between two locations.
	Distance(ctx context.Context, origin, destination string) (Leg, error)
}

// AddressValidation is the outcome of validating a free-form address.
type AddressValidation struct {
	Valid             bool
	NormalizedAddress string
	Reason            string
}

// AddressValidator validates and normalizes free-form addresses. One
// synchronous call per explicit validation request.
type AddressValidator interface {
	ValidateAddress(ctx context.Context, address string) (AddressValidation, error)
}
