package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetops/dispatchd/core/geo"
	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/store"
	"github.com/fleetops/dispatchd/infra/logger"
)

// The clock is pinned to a Sunday so monday is always a valid pickup date.
var (
	clock  = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	monday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
)

type recalcStub struct {
	calls int
}

func (r *recalcStub) Recalculate(_ context.Context, route model.Route, orders []model.Order) (model.Route, error) {
	r.calls++
	route.TotalDistanceKm = float64(len(orders)) * 10
	route.EstimatedTimeMinutes = len(orders) * 30
	return route, nil
}

func newTestManager(st *store.MemoryStore, recalc RouteRecalculator) *Manager {
	m := NewManager(st, geo.StaticValidator{}, recalc, nil, logger.NopLogger{})
	return m.WithClock(func() time.Time { return clock })
}

func createInput(weight float64) CreateInput {
	return CreateInput{
		ClientID:         "client-1",
		Title:            "pallets",
		Price:            250,
		PickupLocation:   "Lyon",
		PickupAddress:    "4 rue de la Soie, Lyon",
		PickupDate:       monday,
		DeliveryLocation: "Paris",
		DeliveryAddress:  "18 avenue du Maine, Paris",
		DeliveryDeadline: monday.AddDate(0, 0, 3),
		CargoWeight:      weight,
	}
}

func TestCreateSelectsSmallestVehicleType(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(store.NewMemoryStore(), nil)

	o, err := m.Create(ctx, createInput(1200))
	require.NoError(t, err)
	require.Equal(t, model.SmallVan, o.VehicleType)
	require.Equal(t, model.OrderPending, o.Status)

	o, err = m.Create(ctx, createInput(3200))
	require.NoError(t, err)
	require.Equal(t, model.MediumTruck, o.VehicleType)
}

func TestCreateHonorsRequiredVehicleType(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(store.NewMemoryStore(), nil)

	in := createInput(800)
	vt := model.LargeTruck
	in.VehicleType = &vt
	o, err := m.Create(ctx, in)
	require.NoError(t, err)
	require.Equal(t, model.LargeTruck, o.VehicleType)

	// A pinned type too small for the cargo is rejected.
	in = createInput(3000)
	small := model.SmallVan
	in.VehicleType = &small
	_, err = m.Create(ctx, in)
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestCreateRejectsSameDayPickup(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(store.NewMemoryStore(), nil)

	in := createInput(500)
	in.PickupDate = model.Day(clock)
	in.DeliveryDeadline = model.Day(clock).AddDate(0, 0, 2)
	_, err := m.Create(ctx, in)
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestCreateNormalizesAddresses(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(store.NewMemoryStore(), nil)

	in := createInput(500)
	in.PickupAddress = "  4   rue de la   Soie,  Lyon "
	o, err := m.Create(ctx, in)
	require.NoError(t, err)
	require.Equal(t, "4 rue de la Soie, Lyon", o.PickupAddress)
}

func TestConfirmOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(st, nil)

	o, err := m.Create(ctx, createInput(500))
	require.NoError(t, err)

	confirmed, err := m.Confirm(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, model.OrderConfirmed, confirmed.Status)
	require.False(t, confirmed.ConfirmedAt.IsZero())

	_, err = m.Confirm(ctx, o.ID)
	require.ErrorIs(t, err, model.ErrInvalidStateTransition)
}

func TestUpdateOnlyBeforeAssignment(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(st, nil)

	o, err := m.Create(ctx, createInput(500))
	require.NoError(t, err)

	up := UpdateInput{
		Title:            "more pallets",
		Price:            300,
		PickupLocation:   "Lyon",
		PickupAddress:    o.PickupAddress,
		PickupDate:       monday,
		DeliveryLocation: "Marseille",
		DeliveryAddress:  o.DeliveryAddress,
		DeliveryDeadline: monday.AddDate(0, 0, 4),
		CargoWeight:      2400,
	}
	updated, err := m.Update(ctx, o.ID, up)
	require.NoError(t, err)
	require.Equal(t, "Marseille", updated.DeliveryLocation)
	require.Equal(t, model.MediumTruck, updated.VehicleType)

	updated.Status = model.OrderAssigned
	_, err = st.UpdateOrder(ctx, updated)
	require.NoError(t, err)
	_, err = m.Update(ctx, o.ID, up)
	require.ErrorIs(t, err, model.ErrInvalidStateTransition)
}

func TestCancelStatusMatrix(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(st, nil)

	for _, c := range []struct {
		status model.OrderStatus
		ok     bool
	}{
		{model.OrderPending, true},
		{model.OrderConfirmed, true},
		{model.OrderInProgress, false},
		{model.OrderCompleted, false},
		{model.OrderCancelled, false},
	} {
		o, err := m.Create(ctx, createInput(500))
		require.NoError(t, err)
		o.Status = c.status
		_, err = st.UpdateOrder(ctx, o)
		require.NoError(t, err)

		_, err = m.Cancel(ctx, o.ID, "client changed plans")
		if c.ok {
			require.NoError(t, err, "status %s", c.status)
			got, err := st.GetOrder(ctx, o.ID)
			require.NoError(t, err)
			require.Equal(t, model.OrderCancelled, got.Status)
			require.Equal(t, "client changed plans", got.CancellationReason)
		} else {
			require.ErrorIs(t, err, model.ErrInvalidStateTransition, "status %s", c.status)
		}
	}
}

func TestCancelRequiresReason(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(st, nil)

	o, err := m.Create(ctx, createInput(500))
	require.NoError(t, err)

	for _, reason := range []string{"", "   "} {
		_, err = m.Cancel(ctx, o.ID, reason)
		require.ErrorIs(t, err, model.ErrInvalidInput, "reason %q", reason)
	}

	got, err := st.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, model.OrderPending, got.Status)
}

// seedRoute commits a planned route carrying the given confirmed orders and
// returns it with the orders attached in the given sequence.
func seedRoute(t *testing.T, st *store.MemoryStore, m *Manager, weights ...float64) (model.Route, []model.Order) {
	t.Helper()
	ctx := context.Background()

	commit := store.RouteCommit{Route: model.Route{
		DriverID:  "d1",
		VehicleID: "v1",
		RouteDate: monday,
		Status:    model.RoutePlanned,
	}}
	for i, w := range weights {
		o, err := m.Create(ctx, createInput(w))
		require.NoError(t, err)
		o, err = m.Confirm(ctx, o.ID)
		require.NoError(t, err)

		o.Status = model.OrderAssigned
		o.DriverID = "d1"
		o.OrderSequence = i + 1
		commit.Route.OrderIDs = append(commit.Route.OrderIDs, o.ID)
		commit.Orders = append(commit.Orders, o)
	}
	created, err := st.CommitRoutes(ctx, []store.RouteCommit{commit})
	require.NoError(t, err)

	orders := make([]model.Order, 0, len(weights))
	for _, id := range created[0].OrderIDs {
		o, err := st.GetOrder(ctx, id)
		require.NoError(t, err)
		orders = append(orders, o)
	}
	return created[0], orders
}

func TestCancelAssignedDetachesAndResequences(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	recalc := &recalcStub{}
	m := newTestManager(st, recalc)

	route, ords := seedRoute(t, st, m, 600, 700)
	first := ords[0]

	cancelled, err := m.Cancel(ctx, first.ID, "no longer needed")
	require.NoError(t, err)
	require.Equal(t, model.OrderCancelled, cancelled.Status)
	require.Empty(t, cancelled.RouteID)
	require.Empty(t, cancelled.DriverID)
	require.Zero(t, cancelled.OrderSequence)

	got, err := st.GetRoute(ctx, route.ID)
	require.NoError(t, err)
	require.Equal(t, model.RoutePlanned, got.Status)
	require.Equal(t, []string{ords[1].ID}, got.OrderIDs)
	require.Equal(t, 1, recalc.calls)
	require.InDelta(t, 10, got.TotalDistanceKm, 0.001)

	remaining, err := st.GetOrder(ctx, ords[1].ID)
	require.NoError(t, err)
	require.Equal(t, 1, remaining.OrderSequence)
	require.Equal(t, model.OrderAssigned, remaining.Status)
}

func TestCancelLastOrderCancelsPlannedRoute(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(st, &recalcStub{})

	route, ords := seedRoute(t, st, m, 600)
	_, err := m.Cancel(ctx, ords[0].ID, "gone")
	require.NoError(t, err)

	got, err := st.GetRoute(ctx, route.ID)
	require.NoError(t, err)
	require.Equal(t, model.RouteCancelled, got.Status)
	require.Empty(t, got.OrderIDs)
	require.Zero(t, got.TotalDistanceKm)
	require.Zero(t, got.EstimatedTimeMinutes)
}

func TestPickupRequiresStartedRouteAndOwner(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(st, nil)

	route, ords := seedRoute(t, st, m, 600)
	o := ords[0]

	_, err := m.Pickup(ctx, o.ID, "d1")
	require.ErrorIs(t, err, model.ErrInvalidStateTransition, "route not started")

	route.Status = model.RouteInProgress
	require.NoError(t, st.UpdateRouteAndOrders(ctx, route, nil))

	_, err = m.Pickup(ctx, o.ID, "someone-else")
	require.ErrorIs(t, err, model.ErrResourceUnavailable)

	picked, err := m.Pickup(ctx, o.ID, "d1")
	require.NoError(t, err)
	require.Equal(t, model.OrderInProgress, picked.Status)

	_, err = m.Pickup(ctx, o.ID, "d1")
	require.ErrorIs(t, err, model.ErrInvalidStateTransition, "already picked up")
}

func TestDeliverLastOrderCompletesRoute(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(st, nil)

	route, ords := seedRoute(t, st, m, 600, 700)
	route.Status = model.RouteInProgress
	require.NoError(t, st.UpdateRouteAndOrders(ctx, route, nil))

	for _, o := range ords {
		_, err := m.Pickup(ctx, o.ID, "d1")
		require.NoError(t, err)
	}

	first, err := m.Deliver(ctx, ords[0].ID, "d1")
	require.NoError(t, err)
	require.Equal(t, model.OrderCompleted, first.Status)
	got, err := st.GetRoute(ctx, route.ID)
	require.NoError(t, err)
	require.Equal(t, model.RouteInProgress, got.Status, "one order still on board")

	_, err = m.Deliver(ctx, ords[1].ID, "d1")
	require.NoError(t, err)
	got, err = st.GetRoute(ctx, route.ID)
	require.NoError(t, err)
	require.Equal(t, model.RouteCompleted, got.Status)
}

func TestDeliverRejectsForeignDriver(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(st, nil)

	route, ords := seedRoute(t, st, m, 600)
	route.Status = model.RouteInProgress
	require.NoError(t, st.UpdateRouteAndOrders(ctx, route, nil))
	_, err := m.Pickup(ctx, ords[0].ID, "d1")
	require.NoError(t, err)

	_, err = m.Deliver(ctx, ords[0].ID, "d2")
	require.ErrorIs(t, err, model.ErrResourceUnavailable)
}

func TestAssignableForFiltersWindow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newTestManager(st, nil)

	in := createInput(500)
	o1, err := m.Create(ctx, in)
	require.NoError(t, err)
	_, err = m.Confirm(ctx, o1.ID)
	require.NoError(t, err)

	// Window opens two days after monday.
	late := createInput(500)
	late.PickupDate = monday.AddDate(0, 0, 2)
	late.DeliveryDeadline = monday.AddDate(0, 0, 5)
	o2, err := m.Create(ctx, late)
	require.NoError(t, err)
	_, err = m.Confirm(ctx, o2.ID)
	require.NoError(t, err)

	got, err := m.AssignableFor(ctx, monday)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, o1.ID, got[0].ID)
}
