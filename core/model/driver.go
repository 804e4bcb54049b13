package model

import (
	"fmt"
	"time"
)

// Driver is a person eligible to carry routes.
type Driver struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Suspended bool   `json:"suspended"`

	// LicenseTypes lists the vehicle classes the driver may operate. An
	// empty set means unrestricted.
	LicenseTypes []VehicleType `json:"license_types,omitempty"`
}

// CanDrive reports whether the driver is licensed for the vehicle type.
func (d Driver) CanDrive(t VehicleType) bool {
	if len(d.LicenseTypes) == 0 {
		return true
	}
	for _, lt := range d.LicenseTypes {
		if lt == t {
			return true
		}
	}
	return false
}

// DriverSchedule defines the recurring work pattern for a driver. At most
// one schedule per driver is active at a time.
type DriverSchedule struct {
	ID            string         `json:"id"`
	DriverID      string         `json:"driver_id"`
	WorkDays      []time.Weekday `json:"work_days"`
	WorkStartTime string         `json:"work_start_time"` // "15:04"
	WorkEndTime   string         `json:"work_end_time"`
	Active        bool           `json:"active"`
}

// Validate checks that the schedule has at least one workday and a start
// time strictly before the end time.
func (s DriverSchedule) Validate() error {
	if s.DriverID == "" {
		return fmt.Errorf("%w: schedule requires a driver", ErrInvalidInput)
	}
	if len(s.WorkDays) == 0 {
		return fmt.Errorf("%w: schedule requires at least one work day", ErrInvalidInput)
	}
	start, err := time.Parse("15:04", s.WorkStartTime)
	if err != nil {
		return fmt.Errorf("%w: bad work start time %q", ErrInvalidInput, s.WorkStartTime)
	}
	end, err := time.Parse("15:04", s.WorkEndTime)
	if err != nil {
		return fmt.Errorf("%w: bad work end time %q", ErrInvalidInput, s.WorkEndTime)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: work start must precede work end", ErrInvalidInput)
	}
	return nil
}

// WorksOn reports whether the schedule covers the weekday of the given date.
func (s DriverSchedule) WorksOn(date time.Time) bool {
	wd := date.UTC().Weekday()
	for _, d := range s.WorkDays {
		if d == wd {
			return true
		}
	}
	return false
}
