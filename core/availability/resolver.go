// Package availability answers "who can work on this date" questions for
// drivers and vehicles. Results are advisory snapshots; the store re-checks
// busyness when routes are committed.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleetops/dispatchd/core/logger"
	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/store"
)

// Resolver computes driver and vehicle availability for a route date.
type Resolver struct {
	store store.Store
	log   logger.Logger
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(st store.Store, log logger.Logger) *Resolver {
	return &Resolver{store: st, log: log}
}

// AvailableDrivers returns drivers that can be assigned a route on date: not
// suspended, an active schedule covering the weekday, and no non-cancelled
// route on that date. A non-nil vehicleType further restricts the result to
// drivers licensed for it.
func (r *Resolver) AvailableDrivers(ctx context.Context, date time.Time, vehicleType *model.VehicleType) ([]model.Driver, error) {
	drivers, err := r.store.ListDrivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	out := make([]model.Driver, 0, len(drivers))
	for _, d := range drivers {
		ok, err := r.driverFree(ctx, d, date, vehicleType)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	r.log.Debugw("resolved available drivers", map[string]any{
		"date":      model.Day(date).Format(time.DateOnly),
		"available": len(out),
		"total":     len(drivers),
	})
	return out, nil
}

// DriverAvailable reports whether one driver can take a route on date.
func (r *Resolver) DriverAvailable(ctx context.Context, driverID string, date time.Time, vehicleType *model.VehicleType) (bool, error) {
	d, err := r.store.GetDriver(ctx, driverID)
	if err != nil {
		return false, err
	}
	return r.driverFree(ctx, d, date, vehicleType)
}

func (r *Resolver) driverFree(ctx context.Context, d model.Driver, date time.Time, vehicleType *model.VehicleType) (bool, error) {
	if d.Suspended {
		return false, nil
	}
	if vehicleType != nil && !d.CanDrive(*vehicleType) {
		return false, nil
	}
	sched, err := r.store.ActiveSchedule(ctx, d.ID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !sched.WorksOn(date) {
		return false, nil
	}
	busy, err := r.store.HasActiveRouteForDriver(ctx, d.ID, date)
	if err != nil {
		return false, err
	}
	return !busy, nil
}

// AvailableVehicles returns vehicles marked available with no non-cancelled
// route on date. A positive minCapacityKg restricts the result to vehicles
// whose type ceiling covers that weight.
func (r *Resolver) AvailableVehicles(ctx context.Context, date time.Time, minCapacityKg float64) ([]model.Vehicle, error) {
	vehicles, err := r.store.ListVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	out := make([]model.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		ok, err := r.vehicleFree(ctx, v, date, minCapacityKg)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	r.log.Debugw("resolved available vehicles", map[string]any{
		"date":      model.Day(date).Format(time.DateOnly),
		"available": len(out),
		"total":     len(vehicles),
	})
	return out, nil
}

// VehicleAvailable reports whether one vehicle can serve a route on date.
func (r *Resolver) VehicleAvailable(ctx context.Context, vehicleID string, date time.Time, minCapacityKg float64) (bool, error) {
	v, err := r.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return false, err
	}
	return r.vehicleFree(ctx, v, date, minCapacityKg)
}

func (r *Resolver) vehicleFree(ctx context.Context, v model.Vehicle, date time.Time, minCapacityKg float64) (bool, error) {
	if !v.Available {
		return false, nil
	}
	if minCapacityKg > 0 && v.MaxWeight() < minCapacityKg {
		return false, nil
	}
	busy, err := r.store.HasActiveRouteForVehicle(ctx, v.ID, date)
	if err != nil {
		return false, err
	}
	return !busy, nil
}
