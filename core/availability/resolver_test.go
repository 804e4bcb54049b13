package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/store"
	"github.com/fleetops/dispatchd/infra/logger"
)

// monday is the fixed route date used across these tests.
var monday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func seedDriver(t *testing.T, st *store.MemoryStore, id string, suspended bool, days []time.Weekday) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.PutDriver(ctx, model.Driver{ID: id, Email: id + "@fleet.test", Name: id, Suspended: suspended}))
	if days != nil {
		require.NoError(t, st.PutSchedule(ctx, model.DriverSchedule{
			DriverID:      id,
			WorkDays:      days,
			WorkStartTime: "08:00",
			WorkEndTime:   "18:00",
			Active:        true,
		}))
	}
}

func TestAvailableDrivers(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := NewResolver(st, logger.NopLogger{})

	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday}
	seedDriver(t, st, "free", false, weekdays)
	seedDriver(t, st, "suspended", true, weekdays)
	seedDriver(t, st, "off-monday", false, []time.Weekday{time.Saturday})
	seedDriver(t, st, "no-schedule", false, nil)
	seedDriver(t, st, "busy", false, weekdays)

	require.NoError(t, st.PutVehicle(ctx, model.Vehicle{ID: "v1", RegistrationNumber: "AA-001-AA", Type: model.LargeTruck, Available: true}))
	_, err := st.CommitRoutes(ctx, []store.RouteCommit{{
		Route: model.Route{DriverID: "busy", VehicleID: "v1", RouteDate: monday, Status: model.RoutePlanned},
	}})
	require.NoError(t, err)

	got, err := r.AvailableDrivers(ctx, monday, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "free", got[0].ID)
}

func TestAvailableDriversLicenseFilter(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := NewResolver(st, logger.NopLogger{})

	days := []time.Weekday{time.Monday}
	seedDriver(t, st, "unrestricted", false, days)
	seedDriver(t, st, "van-only", false, days)

	d, err := st.GetDriver(ctx, "van-only")
	require.NoError(t, err)
	d.LicenseTypes = []model.VehicleType{model.SmallVan}
	require.NoError(t, st.PutDriver(ctx, d))

	semi := model.SemiTruck
	got, err := r.AvailableDrivers(ctx, monday, &semi)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "unrestricted", got[0].ID)
}

func TestAvailableVehicles(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := NewResolver(st, logger.NopLogger{})

	require.NoError(t, st.PutVehicle(ctx, model.Vehicle{ID: "van", RegistrationNumber: "BB-001-BB", Type: model.SmallVan, Available: true}))
	require.NoError(t, st.PutVehicle(ctx, model.Vehicle{ID: "truck", RegistrationNumber: "BB-002-BB", Type: model.LargeTruck, Available: true}))
	require.NoError(t, st.PutVehicle(ctx, model.Vehicle{ID: "garage", RegistrationNumber: "BB-003-BB", Type: model.LargeTruck, Available: false}))
	require.NoError(t, st.PutVehicle(ctx, model.Vehicle{ID: "taken", RegistrationNumber: "BB-004-BB", Type: model.LargeTruck, Available: true}))

	seedDriver(t, st, "d1", false, []time.Weekday{time.Monday})
	_, err := st.CommitRoutes(ctx, []store.RouteCommit{{
		Route: model.Route{DriverID: "d1", VehicleID: "taken", RouteDate: monday, Status: model.RoutePlanned},
	}})
	require.NoError(t, err)

	got, err := r.AvailableVehicles(ctx, monday, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// 3000 kg rules out the small van.
	got, err = r.AvailableVehicles(ctx, monday, 3000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "truck", got[0].ID)
}

func TestVehicleAvailableOnOtherDate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := NewResolver(st, logger.NopLogger{})

	require.NoError(t, st.PutVehicle(ctx, model.Vehicle{ID: "taken", RegistrationNumber: "CC-001-CC", Type: model.MediumTruck, Available: true}))
	seedDriver(t, st, "d1", false, []time.Weekday{time.Monday, time.Tuesday})
	_, err := st.CommitRoutes(ctx, []store.RouteCommit{{
		Route: model.Route{DriverID: "d1", VehicleID: "taken", RouteDate: monday, Status: model.RoutePlanned},
	}})
	require.NoError(t, err)

	tuesday := monday.AddDate(0, 0, 1)
	ok, err := r.VehicleAvailable(ctx, "taken", tuesday, 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.DriverAvailable(ctx, "d1", tuesday, nil)
	require.NoError(t, err)
	require.True(t, ok)
}
