package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetops/dispatchd/core/model"
)

// MemoryStore is the in-memory Store implementation. A single mutex guards
// all maps, so commits are serialized and the uniqueness re-checks inside
// CommitRoutes are race-free.
type MemoryStore struct {
	mu        sync.RWMutex
	orders    map[string]model.Order
	drivers   map[string]model.Driver
	vehicles  map[string]model.Vehicle
	schedules map[string]model.DriverSchedule
	routes    map[string]model.Route
	sessions  map[string]model.PlanningSession
	regs      map[string]string // registration number -> vehicle ID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:    map[string]model.Order{},
		drivers:   map[string]model.Driver{},
		vehicles:  map[string]model.Vehicle{},
		schedules: map[string]model.DriverSchedule{},
		routes:    map[string]model.Route{},
		sessions:  map[string]model.PlanningSession{},
		regs:      map[string]string{},
	}
}

func (s *MemoryStore) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = time.Now().UTC()
	s.orders[o.ID] = o
	return o, nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("%w: order %s", model.ErrNotFound, id)
	}
	return o, nil
}

func (s *MemoryStore) UpdateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return model.Order{}, fmt.Errorf("%w: order %s", model.ErrNotFound, o.ID)
	}
	o.UpdatedAt = time.Now().UTC()
	s.orders[o.ID] = o
	return o, nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.ClientID != "" && o.ClientID != f.ClientID {
			continue
		}
		if f.DriverID != "" && o.DriverID != f.DriverID {
			continue
		}
		if f.Unassigned && o.Assigned() {
			continue
		}
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) PutDriver(ctx context.Context, d model.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		return fmt.Errorf("%w: driver requires an ID", model.ErrInvalidInput)
	}
	s.drivers[d.ID] = d
	return nil
}

func (s *MemoryStore) GetDriver(ctx context.Context, id string) (model.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return model.Driver{}, fmt.Errorf("%w: driver %s", model.ErrNotFound, id)
	}
	return d, nil
}

func (s *MemoryStore) ListDrivers(ctx context.Context) ([]model.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Driver, 0, len(s.drivers))
	for _, d := range s.drivers {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) PutVehicle(ctx context.Context, v model.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if owner, ok := s.regs[v.RegistrationNumber]; ok && owner != v.ID {
		return fmt.Errorf("%w: registration %s already in use", model.ErrInvalidInput, v.RegistrationNumber)
	}
	if prev, ok := s.vehicles[v.ID]; ok && prev.RegistrationNumber != v.RegistrationNumber {
		delete(s.regs, prev.RegistrationNumber)
	}
	s.regs[v.RegistrationNumber] = v.ID
	s.vehicles[v.ID] = v
	return nil
}

func (s *MemoryStore) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return model.Vehicle{}, fmt.Errorf("%w: vehicle %s", model.ErrNotFound, id)
	}
	return v, nil
}

func (s *MemoryStore) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RegistrationNumber < res[j].RegistrationNumber })
	return res, nil
}

func (s *MemoryStore) PutSchedule(ctx context.Context, sc model.DriverSchedule) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if sc.Active {
		for id, other := range s.schedules {
			if other.DriverID == sc.DriverID && other.Active && id != sc.ID {
				other.Active = false
				s.schedules[id] = other
			}
		}
	}
	s.schedules[sc.ID] = sc
	return nil
}

func (s *MemoryStore) ActiveSchedule(ctx context.Context, driverID string) (model.DriverSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.schedules {
		if sc.DriverID == driverID && sc.Active {
			return sc, nil
		}
	}
	return model.DriverSchedule{}, fmt.Errorf("%w: no active schedule for driver %s", model.ErrNotFound, driverID)
}

func (s *MemoryStore) ListActiveSchedules(ctx context.Context) ([]model.DriverSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.DriverSchedule, 0, len(s.schedules))
	for _, sc := range s.schedules {
		if sc.Active {
			res = append(res, sc)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].DriverID < res[j].DriverID })
	return res, nil
}

func (s *MemoryStore) GetRoute(ctx context.Context, id string) (model.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routes[id]
	if !ok {
		return model.Route{}, fmt.Errorf("%w: route %s", model.ErrNotFound, id)
	}
	return r, nil
}

func (s *MemoryStore) ListRoutes(ctx context.Context, f RouteFilter) ([]model.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Route, 0, len(s.routes))
	for _, r := range s.routes {
		if !f.Date.IsZero() && !model.SameDay(r.RouteDate, f.Date) {
			continue
		}
		if f.DriverID != "" && r.DriverID != f.DriverID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) HasActiveRouteForDriver(ctx context.Context, driverID string, date time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driverBusy(driverID, date), nil
}

func (s *MemoryStore) HasActiveRouteForVehicle(ctx context.Context, vehicleID string, date time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vehicleBusy(vehicleID, date), nil
}

// driverBusy and vehicleBusy must be called with the lock held. Any
// non-cancelled route occupies its driver and vehicle for the date.
func (s *MemoryStore) driverBusy(driverID string, date time.Time) bool {
	for _, r := range s.routes {
		if r.DriverID == driverID && r.Status != model.RouteCancelled && model.SameDay(r.RouteDate, date) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) vehicleBusy(vehicleID string, date time.Time) bool {
	for _, r := range s.routes {
		if r.VehicleID == vehicleID && r.Status != model.RouteCancelled && model.SameDay(r.RouteDate, date) {
			return true
		}
	}
	return false
}

// CommitRoutes atomically persists the routes and reassigns their orders.
// All commits succeed or none do.
func (s *MemoryStore) CommitRoutes(ctx context.Context, commits []RouteCommit) ([]model.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-validate everything before touching state: the advisory
	// availability check ran outside this critical section.
	seenDrivers := map[string]bool{}
	seenVehicles := map[string]bool{}
	for _, c := range commits {
		r := c.Route
		if s.driverBusy(r.DriverID, r.RouteDate) || seenDrivers[r.DriverID] {
			return nil, fmt.Errorf("%w: driver %s already routed on %s",
				model.ErrConcurrencyConflict, r.DriverID, model.Day(r.RouteDate).Format("2006-01-02"))
		}
		if s.vehicleBusy(r.VehicleID, r.RouteDate) || seenVehicles[r.VehicleID] {
			return nil, fmt.Errorf("%w: vehicle %s already routed on %s",
				model.ErrConcurrencyConflict, r.VehicleID, model.Day(r.RouteDate).Format("2006-01-02"))
		}
		seenDrivers[r.DriverID] = true
		seenVehicles[r.VehicleID] = true
		for _, o := range c.Orders {
			cur, ok := s.orders[o.ID]
			if !ok {
				return nil, fmt.Errorf("%w: order %s", model.ErrNotFound, o.ID)
			}
			if cur.Status != model.OrderConfirmed || cur.Assigned() {
				return nil, fmt.Errorf("%w: order %s changed since validation", model.ErrConcurrencyConflict, o.ID)
			}
		}
	}

	now := time.Now().UTC()
	created := make([]model.Route, 0, len(commits))
	for _, c := range commits {
		r := c.Route
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.CreatedAt = now
		s.routes[r.ID] = r
		for _, o := range c.Orders {
			o.RouteID = r.ID
			o.UpdatedAt = now
			s.orders[o.ID] = o
		}
		created = append(created, r)
	}
	return created, nil
}

func (s *MemoryStore) UpdateRouteAndOrders(ctx context.Context, r model.Route, orders []model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[r.ID]; !ok {
		return fmt.Errorf("%w: route %s", model.ErrNotFound, r.ID)
	}
	now := time.Now().UTC()
	s.routes[r.ID] = r
	for _, o := range orders {
		if _, ok := s.orders[o.ID]; !ok {
			return fmt.Errorf("%w: order %s", model.ErrNotFound, o.ID)
		}
		o.UpdatedAt = now
		s.orders[o.ID] = o
	}
	return nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, sess model.PlanningSession) (model.PlanningSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	sess.StartedAt = time.Now().UTC()
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) (model.PlanningSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.PlanningSession{}, fmt.Errorf("%w: planning session %s", model.ErrNotFound, id)
	}
	return sess, nil
}

func (s *MemoryStore) UpdateSession(ctx context.Context, sess model.PlanningSession) (model.PlanningSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return model.PlanningSession{}, fmt.Errorf("%w: planning session %s", model.ErrNotFound, sess.ID)
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *MemoryStore) ListSessions(ctx context.Context, f SessionFilter) ([]model.PlanningSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.PlanningSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if f.Status != "" && sess.Status != f.Status {
			continue
		}
		if !f.Date.IsZero() && !model.SameDay(sess.PlanningDate, f.Date) {
			continue
		}
		if f.Unconsumed && sess.Consumed {
			continue
		}
		res = append(res, sess)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].PlanningDate.Equal(res[j].PlanningDate) {
			return res[i].PlanningDate.Before(res[j].PlanningDate)
		}
		return res[i].StartedAt.Before(res[j].StartedAt)
	})
	return res, nil
}
