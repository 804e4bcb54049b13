package geo

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// StaticEstimator serves estimates from a fixed table, with an optional
// default leg for unknown pairs. Used in tests and offline development.
type StaticEstimator struct {
	mu      sync.RWMutex
	legs    map[string]Leg
	Default *Leg // returned for unknown pairs when set
}

// StaticLeg seeds one origin/destination pair.
type StaticLeg struct {
	From, To string
	Km       float64
	Minutes  int
}

// NewStaticEstimator builds an estimator from the given pairs.
func NewStaticEstimator(pairs ...StaticLeg) *StaticEstimator {
	m := make(map[string]Leg, len(pairs))
	for _, p := range pairs {
		m[p.From+"|"+p.To] = Leg{DistanceKm: p.Km, DurationMinutes: p.Minutes}
	}
	return &StaticEstimator{legs: m}
}

// Set adds or replaces a pair.
func (e *StaticEstimator) Set(from, to string, km float64, minutes int) {
	e.mu.Lock()
	e.legs[from+"|"+to] = Leg{DistanceKm: km, DurationMinutes: minutes}
	e.mu.Unlock()
}

func (e *StaticEstimator) Distance(ctx context.Context, origin, destination string) (Leg, error) {
	if origin == destination {
		return Leg{}, nil
	}
	e.mu.RLock()
	leg, ok := e.legs[origin+"|"+destination]
	e.mu.RUnlock()
	if !ok {
		if e.Default != nil {
			return *e.Default, nil
		}
		return Leg{}, fmt.Errorf("no estimate for %q -> %q", origin, destination)
	}
	return leg, nil
}

// StaticValidator accepts any non-blank address and normalizes whitespace.
// Real deployments plug a geocoding provider behind AddressValidator.
type StaticValidator struct{}

func (StaticValidator) ValidateAddress(ctx context.Context, address string) (AddressValidation, error) {
	trimmed := strings.Join(strings.Fields(address), " ")
	if trimmed == "" {
		return AddressValidation{Valid: false, Reason: "empty address"}, nil
	}
	return AddressValidation{Valid: true, NormalizedAddress: trimmed}, nil
}
