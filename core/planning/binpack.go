package planning

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/fleetops/dispatchd/core/model"
)

// assignment pairs a driver and vehicle with the orders packed onto them.
type assignment struct {
	driver  model.Driver
	vehicle model.Vehicle
	orders  []model.Order
}

// packOrders distributes orders over the available fleet with first-fit
// decreasing by cargo weight. Vehicles are considered largest first so heavy
// cargo lands on the fewest trucks; each vehicle is paired with the first
// unused driver licensed for it. Returns an error naming the orders that no
// pairing can carry.
func packOrders(orders []model.Order, drivers []model.Driver, vehicles []model.Vehicle) ([]assignment, error) {
	sorted := make([]model.Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CargoWeight != sorted[j].CargoWeight {
			return sorted[i].CargoWeight > sorted[j].CargoWeight
		}
		return sorted[i].ID < sorted[j].ID
	})

	fleet := make([]model.Vehicle, len(vehicles))
	copy(fleet, vehicles)
	sort.Slice(fleet, func(i, j int) bool {
		if fleet[i].MaxWeight() != fleet[j].MaxWeight() {
			return fleet[i].MaxWeight() > fleet[j].MaxWeight()
		}
		return fleet[i].ID < fleet[j].ID
	})

	bins := pairFleet(fleet, drivers)
	var unpacked []string
	for _, o := range sorted {
		placed := false
		for i := range bins {
			if bins[i].load()+o.CargoWeight <= bins[i].vehicle.MaxWeight() {
				bins[i].orders = append(bins[i].orders, o)
				placed = true
				break
			}
		}
		if !placed {
			unpacked = append(unpacked, o.ID)
		}
	}
	if len(unpacked) > 0 {
		return nil, fmt.Errorf("%w: no capacity for orders %s", model.ErrPlanningFailed, strings.Join(unpacked, ", "))
	}

	used := bins[:0]
	for _, b := range bins {
		if len(b.orders) > 0 {
			used = append(used, b)
		}
	}
	return used, nil
}

// pairFleet matches each vehicle with the first remaining driver licensed for
// it. Vehicles without a matching driver are left out of the bin set.
func pairFleet(vehicles []model.Vehicle, drivers []model.Driver) []assignment {
	taken := make([]bool, len(drivers))
	bins := make([]assignment, 0, len(vehicles))
	for _, v := range vehicles {
		for i, d := range drivers {
			if taken[i] || !d.CanDrive(v.Type) {
				continue
			}
			taken[i] = true
			bins = append(bins, assignment{driver: d, vehicle: v})
			break
		}
	}
	return bins
}

func (a assignment) load() float64 {
	weights := make([]float64, len(a.orders))
	for i, o := range a.orders {
		weights[i] = o.CargoWeight
	}
	return floats.Sum(weights)
}
