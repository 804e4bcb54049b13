package model

import "fmt"

// VehicleType classifies vehicles by size class. The weight ceiling is
// determined by the type and is not independently settable.
type VehicleType int

const (
	SmallVan VehicleType = iota
	MediumTruck
	LargeTruck
	SemiTruck
)

// maxCargoKg is the maximum total cargo weight per vehicle type in kilograms.
var maxCargoKg = map[VehicleType]float64{
	SmallVan:    1500,
	MediumTruck: 5000,
	LargeTruck:  12000,
	SemiTruck:   25000,
}

// MaxCargoWeight is the highest weight any vehicle type can carry.
const MaxCargoWeight = 25000.0

// MaxWeight returns the cargo ceiling in kg for the vehicle type.
func (t VehicleType) MaxWeight() float64 { return maxCargoKg[t] }

// String returns the wire representation of the vehicle type.
func (t VehicleType) String() string {
	switch t {
	case SmallVan:
		return "SMALL_VAN"
	case MediumTruck:
		return "MEDIUM_TRUCK"
	case LargeTruck:
		return "LARGE_TRUCK"
	case SemiTruck:
		return "SEMI_TRUCK"
	default:
		return "unknown"
	}
}

// VehicleTypeFromString parses the wire representation of a vehicle type.
func VehicleTypeFromString(s string) (VehicleType, error) {
	switch s {
	case "SMALL_VAN":
		return SmallVan, nil
	case "MEDIUM_TRUCK":
		return MediumTruck, nil
	case "LARGE_TRUCK":
		return LargeTruck, nil
	case "SEMI_TRUCK":
		return SemiTruck, nil
	default:
		return 0, fmt.Errorf("%w: unknown vehicle type %q", ErrInvalidInput, s)
	}
}

// SmallestVehicleTypeFor returns the smallest vehicle type whose ceiling
// covers the given cargo weight. Weights above every ceiling map to the
// largest type; callers validate the absolute maximum separately.
func SmallestVehicleTypeFor(cargoWeight float64) VehicleType {
	for _, t := range []VehicleType{SmallVan, MediumTruck, LargeTruck, SemiTruck} {
		if cargoWeight <= t.MaxWeight() {
			return t
		}
	}
	return SemiTruck
}

// MarshalText implements encoding.TextMarshaler.
func (t VehicleType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *VehicleType) UnmarshalText(b []byte) error {
	v, err := VehicleTypeFromString(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Vehicle is a truck or van eligible to carry routes.
type Vehicle struct {
	ID                 string      `json:"id"`
	RegistrationNumber string      `json:"registration_number"` // unique across the fleet
	Brand              string      `json:"brand"`
	Model              string      `json:"model"`
	Type               VehicleType `json:"type"`
	Available          bool        `json:"available"`
	Notes              string      `json:"notes,omitempty"`
}

// MaxWeight returns the cargo ceiling derived from the vehicle type.
func (v Vehicle) MaxWeight() float64 { return v.Type.MaxWeight() }

// Validate checks that the vehicle registration is sound.
func (v Vehicle) Validate() error {
	if v.RegistrationNumber == "" {
		return fmt.Errorf("%w: registration number is required", ErrInvalidInput)
	}
	return nil
}
