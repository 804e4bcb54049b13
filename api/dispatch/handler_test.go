package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetops/dispatchd/core/availability"
	"github.com/fleetops/dispatchd/core/geo"
	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/orders"
	"github.com/fleetops/dispatchd/core/planning"
	"github.com/fleetops/dispatchd/core/routes"
	"github.com/fleetops/dispatchd/core/store"
	"github.com/fleetops/dispatchd/infra/logger"
)

type apiFixture struct {
	mux      *http.ServeMux
	st       *store.MemoryStore
	tomorrow time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	st := store.NewMemoryStore()
	estimator := geo.NewStaticEstimator()
	estimator.Default = &geo.Leg{DistanceKm: 25, DurationMinutes: 35}
	resolver := availability.NewResolver(st, logger.NopLogger{})
	planner := routes.NewPlanner(st, resolver, estimator, nil, logger.NopLogger{}, routes.Config{BaseLocation: "depot"})
	orderMgr := orders.NewManager(st, geo.StaticValidator{}, planner, nil, logger.NopLogger{})
	engine := planning.NewEngine(st, planner, resolver, nil, nil, nil, logger.NopLogger{})
	t.Cleanup(engine.Shutdown)
	h := NewHandler(st, orderMgr, planner, engine, resolver, logger.NopLogger{})
	return &apiFixture{
		mux:      h.Routes(),
		st:       st,
		tomorrow: model.Day(time.Now()).AddDate(0, 0, 1),
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func (f *apiFixture) seedFleet(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodPut, "/api/drivers/d1", map[string]any{
		"email": "d1@fleet.test",
		"name":  "Driver One",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/drivers/d1/schedule", map[string]any{
		"work_days":       []int{0, 1, 2, 3, 4, 5, 6},
		"work_start_time": "07:00",
		"work_end_time":   "19:00",
		"active":          true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/vehicles/van", map[string]any{
		"registration_number": "VAN-001",
		"brand":               "Renault",
		"model":               "Master",
		"type":                "SMALL_VAN",
		"available":           true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (f *apiFixture) orderBody(weight float64) map[string]any {
	return map[string]any{
		"client_id":         "client-1",
		"title":             "pallets",
		"price":             250,
		"pickup_location":   "Lyon",
		"pickup_address":    "4 rue de la Soie, Lyon",
		"pickup_date":       f.tomorrow.Format(time.DateOnly),
		"delivery_location": "Paris",
		"delivery_address":  "18 avenue du Maine, Paris",
		"delivery_deadline": f.tomorrow.AddDate(0, 0, 3).Format(time.DateOnly),
		"cargo_weight":      weight,
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	f.seedFleet(t)

	rec := f.do(t, http.MethodPost, "/api/orders", f.orderBody(900))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order model.Order
	decodeInto(t, rec, &order)
	require.Equal(t, model.OrderPending, order.Status)
	require.Equal(t, model.SmallVan, order.VehicleType)

	rec = f.do(t, http.MethodPost, "/api/orders/"+order.ID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/routes", map[string]any{
		"driver_id":  "d1",
		"vehicle_id": "van",
		"route_date": f.tomorrow.Format(time.DateOnly),
		"order_ids":  []string{order.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var route model.Route
	decodeInto(t, rec, &route)
	require.Equal(t, model.RoutePlanned, route.Status)

	rec = f.do(t, http.MethodPost, "/api/routes/"+route.ID+"/start", map[string]any{"driver_id": "d1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/orders/"+order.ID+"/pickup", map[string]any{"driver_id": "d1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/orders/"+order.ID+"/deliver", map[string]any{"driver_id": "d1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeInto(t, rec, &order)
	require.Equal(t, model.OrderCompleted, order.Status)

	// Delivering the last order closed the route.
	rec = f.do(t, http.MethodGet, "/api/routes/"+route.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &route)
	require.Equal(t, model.RouteCompleted, route.Status)
}

func TestErrorTaxonomyStatusCodes(t *testing.T) {
	f := newAPIFixture(t)
	f.seedFleet(t)

	// Unknown entity.
	rec := f.do(t, http.MethodGet, "/api/orders/unknown", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Invalid input.
	body := f.orderBody(0)
	rec = f.do(t, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orders", f.orderBody(900))
	require.Equal(t, http.StatusCreated, rec.Code)
	var order model.Order
	decodeInto(t, rec, &order)

	// Cancellation needs a reason.
	rec = f.do(t, http.MethodPost, "/api/orders/"+order.ID+"/cancel", map[string]any{"reason": ""})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Illegal state transition.
	rec = f.do(t, http.MethodPost, "/api/orders/"+order.ID+"/pickup", map[string]any{"driver_id": "d1"})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Capacity exceeded maps to conflict as well.
	rec = f.do(t, http.MethodPost, "/api/orders", f.orderBody(1400))
	require.Equal(t, http.StatusCreated, rec.Code)
	var second model.Order
	decodeInto(t, rec, &second)
	for _, id := range []string{order.ID, second.ID} {
		rec = f.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/routes", map[string]any{
		"driver_id":  "d1",
		"vehicle_id": "van",
		"route_date": f.tomorrow.Format(time.DateOnly),
		"order_ids":  []string{order.ID, second.ID},
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Unavailable resources.
	rec = f.do(t, http.MethodPost, "/api/routes", map[string]any{
		"driver_id":  "d1",
		"vehicle_id": "van",
		"route_date": f.tomorrow.Format(time.DateOnly),
		"order_ids":  []string{order.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/routes", map[string]any{
		"driver_id":  "d1",
		"vehicle_id": "van",
		"route_date": f.tomorrow.Format(time.DateOnly),
		"order_ids":  []string{second.ID},
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAvailabilityEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.seedFleet(t)
	date := f.tomorrow.Format(time.DateOnly)

	rec := f.do(t, http.MethodGet, "/api/availability/drivers?date="+date, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var drivers []model.Driver
	decodeInto(t, rec, &drivers)
	require.Len(t, drivers, 1)

	rec = f.do(t, http.MethodGet, "/api/availability/vehicles?date="+date+"&min_capacity=3000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var vehicles []model.Vehicle
	decodeInto(t, rec, &vehicles)
	require.Empty(t, vehicles, "the van cannot carry 3000 kg")

	rec = f.do(t, http.MethodGet, "/api/availability/drivers", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "date is required")
}

func TestPlanningEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.seedFleet(t)
	date := f.tomorrow.Format(time.DateOnly)

	rec := f.do(t, http.MethodPost, "/api/orders", f.orderBody(900))
	require.Equal(t, http.StatusCreated, rec.Code)
	var order model.Order
	decodeInto(t, rec, &order)
	rec = f.do(t, http.MethodPost, "/api/orders/"+order.ID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/planning", map[string]any{
		"date":         date,
		"requested_by": "dispatcher",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var sess model.PlanningSession
	decodeInto(t, rec, &sess)
	require.Equal(t, model.PlanningInProgress, sess.Status)

	// The proposal is computed asynchronously; poll until decided.
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = f.do(t, http.MethodGet, "/api/planning/"+sess.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decodeInto(t, rec, &sess)
		if sess.Status != model.PlanningInProgress {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session still in progress: %+v", sess)
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, model.PlanningCompleted, sess.Status)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/planning/unconsumed?date=%s", date), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []model.PlanningSession
	decodeInto(t, rec, &pending)
	require.Len(t, pending, 1)

	rec = f.do(t, http.MethodPost, "/api/planning/"+sess.ID+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeInto(t, rec, &sess)
	require.Equal(t, model.PlanningAccepted, sess.Status)

	rec = f.do(t, http.MethodPost, "/api/planning/"+sess.ID+"/consume", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders/"+order.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &order)
	require.Equal(t, model.OrderAssigned, order.Status)
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
