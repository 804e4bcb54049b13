// Package store provides the Postgres-backed persistence layer. The
// driver/vehicle-per-date uniqueness invariant is enforced by partial unique
// indexes, so it holds even across multiple service instances.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetops/dispatchd/core/model"
	corestore "github.com/fleetops/dispatchd/core/store"
)

const uniqueViolation = "23505"

// PostgresStore implements core/store.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS orders (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id           TEXT NOT NULL DEFAULT '',
	title               TEXT NOT NULL DEFAULT '',
	price               DOUBLE PRECISION NOT NULL DEFAULT 0,
	pickup_location     TEXT NOT NULL DEFAULT '',
	pickup_address      TEXT NOT NULL DEFAULT '',
	pickup_date         TIMESTAMPTZ NOT NULL,
	delivery_location   TEXT NOT NULL DEFAULT '',
	delivery_address    TEXT NOT NULL DEFAULT '',
	delivery_deadline   TIMESTAMPTZ NOT NULL,
	vehicle_type        TEXT NOT NULL,
	cargo_weight        DOUBLE PRECISION NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL,
	route_id            TEXT NOT NULL DEFAULT '',
	driver_id           TEXT NOT NULL DEFAULT '',
	order_sequence      INT NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
	confirmed_at        TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
	cancelled_at        TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
	cancellation_reason TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS drivers (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL DEFAULT '',
	suspended     BOOLEAN NOT NULL DEFAULT FALSE,
	license_types TEXT[] NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS vehicles (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	registration_number TEXT NOT NULL UNIQUE,
	brand               TEXT NOT NULL DEFAULT '',
	model               TEXT NOT NULL DEFAULT '',
	type                TEXT NOT NULL,
	available           BOOLEAN NOT NULL DEFAULT TRUE,
	notes               TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS schedules (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	driver_id       TEXT NOT NULL,
	work_days       INT[] NOT NULL,
	work_start_time TEXT NOT NULL,
	work_end_time   TEXT NOT NULL,
	active          BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE UNIQUE INDEX IF NOT EXISTS schedules_one_active
	ON schedules (driver_id) WHERE active;
CREATE TABLE IF NOT EXISTS routes (
	id                     TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	driver_id              TEXT NOT NULL,
	vehicle_id             TEXT NOT NULL,
	route_date             TIMESTAMPTZ NOT NULL,
	order_ids              TEXT[] NOT NULL DEFAULT '{}',
	total_distance_km      DOUBLE PRECISION NOT NULL DEFAULT 0,
	estimated_time_minutes INT NOT NULL DEFAULT 0,
	status                 TEXT NOT NULL,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS routes_driver_per_date
	ON routes (driver_id, route_date) WHERE status <> 'CANCELLED';
CREATE UNIQUE INDEX IF NOT EXISTS routes_vehicle_per_date
	ON routes (vehicle_id, route_date) WHERE status <> 'CANCELLED';
CREATE TABLE IF NOT EXISTS planning_sessions (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status        TEXT NOT NULL,
	planning_date TIMESTAMPTZ NOT NULL,
	order_ids     TEXT[] NOT NULL DEFAULT '{}',
	routes        JSONB NOT NULL DEFAULT '[]',
	reason        TEXT NOT NULL DEFAULT '',
	requested_by  TEXT NOT NULL DEFAULT '',
	consumed      BOOLEAN NOT NULL DEFAULT FALSE,
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at   TIMESTAMPTZ NOT NULL DEFAULT 'epoch'
);`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func mapErr(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", model.ErrNotFound, what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", model.ErrConcurrencyConflict, pgErr.ConstraintName)
	}
	return err
}

const orderCols = `id, client_id, title, price, pickup_location, pickup_address, pickup_date,
	delivery_location, delivery_address, delivery_deadline, vehicle_type, cargo_weight,
	description, status, route_id, driver_id, order_sequence, created_at, updated_at,
	confirmed_at, cancelled_at, cancellation_reason`

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	var vt string
	err := row.Scan(&o.ID, &o.ClientID, &o.Title, &o.Price, &o.PickupLocation, &o.PickupAddress,
		&o.PickupDate, &o.DeliveryLocation, &o.DeliveryAddress, &o.DeliveryDeadline, &vt,
		&o.CargoWeight, &o.Description, &o.Status, &o.RouteID, &o.DriverID, &o.OrderSequence,
		&o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt, &o.CancelledAt, &o.CancellationReason)
	if err != nil {
		return model.Order{}, err
	}
	if o.VehicleType, err = model.VehicleTypeFromString(vt); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (s *PostgresStore) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	row := s.pool.QueryRow(ctx, `
INSERT INTO orders (client_id, title, price, pickup_location, pickup_address, pickup_date,
	delivery_location, delivery_address, delivery_deadline, vehicle_type, cargo_weight,
	description, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING `+orderCols,
		o.ClientID, o.Title, o.Price, o.PickupLocation, o.PickupAddress, o.PickupDate,
		o.DeliveryLocation, o.DeliveryAddress, o.DeliveryDeadline, o.VehicleType.String(),
		o.CargoWeight, o.Description, o.Status)
	created, err := scanOrder(row)
	if err != nil {
		return model.Order{}, mapErr(err, "order")
	}
	return created, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (model.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return model.Order{}, mapErr(err, "order "+id)
	}
	return o, nil
}

func (s *PostgresStore) UpdateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	return s.updateOrderTx(ctx, s.pool, o)
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) updateOrderTx(ctx context.Context, q execQuerier, o model.Order) (model.Order, error) {
	row := q.QueryRow(ctx, `
UPDATE orders SET client_id=$2, title=$3, price=$4, pickup_location=$5, pickup_address=$6,
	pickup_date=$7, delivery_location=$8, delivery_address=$9, delivery_deadline=$10,
	vehicle_type=$11, cargo_weight=$12, description=$13, status=$14, route_id=$15,
	driver_id=$16, order_sequence=$17, updated_at=now(), confirmed_at=$18, cancelled_at=$19,
	cancellation_reason=$20
WHERE id = $1
RETURNING `+orderCols,
		o.ID, o.ClientID, o.Title, o.Price, o.PickupLocation, o.PickupAddress, o.PickupDate,
		o.DeliveryLocation, o.DeliveryAddress, o.DeliveryDeadline, o.VehicleType.String(),
		o.CargoWeight, o.Description, o.Status, o.RouteID, o.DriverID, o.OrderSequence,
		o.ConfirmedAt, o.CancelledAt, o.CancellationReason)
	updated, err := scanOrder(row)
	if err != nil {
		return model.Order{}, mapErr(err, "order "+o.ID)
	}
	return updated, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, f corestore.OrderFilter) ([]model.Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.ClientID != "" {
		args = append(args, f.ClientID)
		q += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if f.DriverID != "" {
		args = append(args, f.DriverID)
		q += fmt.Sprintf(" AND driver_id = $%d", len(args))
	}
	if f.Unassigned {
		q += " AND route_id = ''"
	}
	q += " ORDER BY created_at"
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (s *PostgresStore) PutDriver(ctx context.Context, d model.Driver) error {
	if d.ID == "" {
		return fmt.Errorf("%w: driver requires an ID", model.ErrInvalidInput)
	}
	lts := make([]string, len(d.LicenseTypes))
	for i, lt := range d.LicenseTypes {
		lts[i] = lt.String()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO drivers (id, email, name, suspended, license_types)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET email=$2, name=$3, suspended=$4, license_types=$5`,
		d.ID, d.Email, d.Name, d.Suspended, lts)
	return err
}

func scanDriver(row pgx.Row) (model.Driver, error) {
	var d model.Driver
	var lts []string
	if err := row.Scan(&d.ID, &d.Email, &d.Name, &d.Suspended, &lts); err != nil {
		return model.Driver{}, err
	}
	for _, lt := range lts {
		vt, err := model.VehicleTypeFromString(lt)
		if err != nil {
			return model.Driver{}, err
		}
		d.LicenseTypes = append(d.LicenseTypes, vt)
	}
	return d, nil
}

func (s *PostgresStore) GetDriver(ctx context.Context, id string) (model.Driver, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, email, name, suspended, license_types FROM drivers WHERE id = $1`, id)
	d, err := scanDriver(row)
	if err != nil {
		return model.Driver{}, mapErr(err, "driver "+id)
	}
	return d, nil
}

func (s *PostgresStore) ListDrivers(ctx context.Context) ([]model.Driver, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, email, name, suspended, license_types FROM drivers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (s *PostgresStore) PutVehicle(ctx context.Context, v model.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	var err error
	if v.ID == "" {
		_, err = s.pool.Exec(ctx, `
INSERT INTO vehicles (registration_number, brand, model, type, available, notes)
VALUES ($1,$2,$3,$4,$5,$6)`,
			v.RegistrationNumber, v.Brand, v.Model, v.Type.String(), v.Available, v.Notes)
	} else {
		_, err = s.pool.Exec(ctx, `
INSERT INTO vehicles (id, registration_number, brand, model, type, available, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET registration_number=$2, brand=$3, model=$4, type=$5, available=$6, notes=$7`,
			v.ID, v.RegistrationNumber, v.Brand, v.Model, v.Type.String(), v.Available, v.Notes)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: registration %s already in use", model.ErrInvalidInput, v.RegistrationNumber)
	}
	return err
}

func scanVehicle(row pgx.Row) (model.Vehicle, error) {
	var v model.Vehicle
	var vt string
	if err := row.Scan(&v.ID, &v.RegistrationNumber, &v.Brand, &v.Model, &vt, &v.Available, &v.Notes); err != nil {
		return model.Vehicle{}, err
	}
	var err error
	if v.Type, err = model.VehicleTypeFromString(vt); err != nil {
		return model.Vehicle{}, err
	}
	return v, nil
}

func (s *PostgresStore) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, registration_number, brand, model, type, available, notes FROM vehicles WHERE id = $1`, id)
	v, err := scanVehicle(row)
	if err != nil {
		return model.Vehicle{}, mapErr(err, "vehicle "+id)
	}
	return v, nil
}

func (s *PostgresStore) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, registration_number, brand, model, type, available, notes FROM vehicles ORDER BY registration_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (s *PostgresStore) PutSchedule(ctx context.Context, sc model.DriverSchedule) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	days := make([]int32, len(sc.WorkDays))
	for i, d := range sc.WorkDays {
		days[i] = int32(d)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if sc.Active {
		if _, err := tx.Exec(ctx, `UPDATE schedules SET active = FALSE WHERE driver_id = $1 AND active`, sc.DriverID); err != nil {
			return err
		}
	}
	if sc.ID == "" {
		_, err = tx.Exec(ctx, `
INSERT INTO schedules (driver_id, work_days, work_start_time, work_end_time, active)
VALUES ($1,$2,$3,$4,$5)`,
			sc.DriverID, days, sc.WorkStartTime, sc.WorkEndTime, sc.Active)
	} else {
		_, err = tx.Exec(ctx, `
INSERT INTO schedules (id, driver_id, work_days, work_start_time, work_end_time, active)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET work_days=$3, work_start_time=$4, work_end_time=$5, active=$6`,
			sc.ID, sc.DriverID, days, sc.WorkStartTime, sc.WorkEndTime, sc.Active)
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanSchedule(row pgx.Row) (model.DriverSchedule, error) {
	var sc model.DriverSchedule
	var days []int32
	if err := row.Scan(&sc.ID, &sc.DriverID, &days, &sc.WorkStartTime, &sc.WorkEndTime, &sc.Active); err != nil {
		return model.DriverSchedule{}, err
	}
	for _, d := range days {
		sc.WorkDays = append(sc.WorkDays, time.Weekday(d))
	}
	return sc, nil
}

func (s *PostgresStore) ActiveSchedule(ctx context.Context, driverID string) (model.DriverSchedule, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, driver_id, work_days, work_start_time, work_end_time, active
FROM schedules WHERE driver_id = $1 AND active`, driverID)
	sc, err := scanSchedule(row)
	if err != nil {
		return model.DriverSchedule{}, mapErr(err, "no active schedule for driver "+driverID)
	}
	return sc, nil
}

func (s *PostgresStore) ListActiveSchedules(ctx context.Context) ([]model.DriverSchedule, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, driver_id, work_days, work_start_time, work_end_time, active
FROM schedules WHERE active ORDER BY driver_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.DriverSchedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, sc)
	}
	return res, rows.Err()
}

const routeCols = `id, driver_id, vehicle_id, route_date, order_ids, total_distance_km,
	estimated_time_minutes, status, created_at`

func scanRoute(row pgx.Row) (model.Route, error) {
	var r model.Route
	err := row.Scan(&r.ID, &r.DriverID, &r.VehicleID, &r.RouteDate, &r.OrderIDs,
		&r.TotalDistanceKm, &r.EstimatedTimeMinutes, &r.Status, &r.CreatedAt)
	if err != nil {
		return model.Route{}, err
	}
	return r, nil
}

func (s *PostgresStore) GetRoute(ctx context.Context, id string) (model.Route, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+routeCols+` FROM routes WHERE id = $1`, id)
	r, err := scanRoute(row)
	if err != nil {
		return model.Route{}, mapErr(err, "route "+id)
	}
	return r, nil
}

func (s *PostgresStore) ListRoutes(ctx context.Context, f corestore.RouteFilter) ([]model.Route, error) {
	q := `SELECT ` + routeCols + ` FROM routes WHERE 1=1`
	var args []any
	if !f.Date.IsZero() {
		args = append(args, model.Day(f.Date))
		q += fmt.Sprintf(" AND route_date = $%d", len(args))
	}
	if f.DriverID != "" {
		args = append(args, f.DriverID)
		q += fmt.Sprintf(" AND driver_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY created_at"
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *PostgresStore) HasActiveRouteForDriver(ctx context.Context, driverID string, date time.Time) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
SELECT count(*) FROM routes
WHERE driver_id = $1 AND route_date = $2 AND status <> 'CANCELLED'`,
		driverID, model.Day(date)).Scan(&n)
	return n > 0, err
}

func (s *PostgresStore) HasActiveRouteForVehicle(ctx context.Context, vehicleID string, date time.Time) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
SELECT count(*) FROM routes
WHERE vehicle_id = $1 AND route_date = $2 AND status <> 'CANCELLED'`,
		vehicleID, model.Day(date)).Scan(&n)
	return n > 0, err
}

// CommitRoutes inserts all routes and reassigns their orders in a single
// transaction. Orders are locked and re-checked; the partial unique indexes
// reject a driver or vehicle double-booking even against concurrent commits
// from other instances.
func (s *PostgresStore) CommitRoutes(ctx context.Context, commits []corestore.RouteCommit) ([]model.Route, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created := make([]model.Route, 0, len(commits))
	for _, c := range commits {
		for _, o := range c.Orders {
			var status, routeID string
			err := tx.QueryRow(ctx, `SELECT status, route_id FROM orders WHERE id = $1 FOR UPDATE`, o.ID).
				Scan(&status, &routeID)
			if err != nil {
				return nil, mapErr(err, "order "+o.ID)
			}
			if model.OrderStatus(status) != model.OrderConfirmed || routeID != "" {
				return nil, fmt.Errorf("%w: order %s changed since validation", model.ErrConcurrencyConflict, o.ID)
			}
		}
		r := c.Route
		row := tx.QueryRow(ctx, `
INSERT INTO routes (driver_id, vehicle_id, route_date, order_ids, total_distance_km,
	estimated_time_minutes, status)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+routeCols,
			r.DriverID, r.VehicleID, model.Day(r.RouteDate), r.OrderIDs, r.TotalDistanceKm,
			r.EstimatedTimeMinutes, r.Status)
		inserted, err := scanRoute(row)
		if err != nil {
			return nil, mapErr(err, "route")
		}
		for _, o := range c.Orders {
			o.RouteID = inserted.ID
			if _, err := s.updateOrderTx(ctx, tx, o); err != nil {
				return nil, err
			}
		}
		created = append(created, inserted)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr(err, "commit routes")
	}
	return created, nil
}

func (s *PostgresStore) UpdateRouteAndOrders(ctx context.Context, r model.Route, orders []model.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE routes SET order_ids=$2, total_distance_km=$3, estimated_time_minutes=$4, status=$5
WHERE id = $1`,
		r.ID, r.OrderIDs, r.TotalDistanceKm, r.EstimatedTimeMinutes, r.Status)
	if err != nil {
		return mapErr(err, "route "+r.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: route %s", model.ErrNotFound, r.ID)
	}
	for _, o := range orders {
		if _, err := s.updateOrderTx(ctx, tx, o); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(err, "update route")
	}
	return nil
}

const sessionCols = `id, status, planning_date, order_ids, routes, reason, requested_by,
	consumed, started_at, finished_at`

func scanSession(row pgx.Row) (model.PlanningSession, error) {
	var sess model.PlanningSession
	err := row.Scan(&sess.ID, &sess.Status, &sess.PlanningDate, &sess.OrderIDs, &sess.Routes,
		&sess.Reason, &sess.RequestedBy, &sess.Consumed, &sess.StartedAt, &sess.FinishedAt)
	if err != nil {
		return model.PlanningSession{}, err
	}
	return sess, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess model.PlanningSession) (model.PlanningSession, error) {
	row := s.pool.QueryRow(ctx, `
INSERT INTO planning_sessions (status, planning_date, order_ids, routes, reason, requested_by, consumed)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+sessionCols,
		sess.Status, model.Day(sess.PlanningDate), sess.OrderIDs, sess.Routes, sess.Reason,
		sess.RequestedBy, sess.Consumed)
	created, err := scanSession(row)
	if err != nil {
		return model.PlanningSession{}, mapErr(err, "planning session")
	}
	return created, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (model.PlanningSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM planning_sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err != nil {
		return model.PlanningSession{}, mapErr(err, "planning session "+id)
	}
	return sess, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sess model.PlanningSession) (model.PlanningSession, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE planning_sessions SET status=$2, routes=$3, reason=$4, consumed=$5, finished_at=$6
WHERE id = $1
RETURNING `+sessionCols,
		sess.ID, sess.Status, sess.Routes, sess.Reason, sess.Consumed, sess.FinishedAt)
	updated, err := scanSession(row)
	if err != nil {
		return model.PlanningSession{}, mapErr(err, "planning session "+sess.ID)
	}
	return updated, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, f corestore.SessionFilter) ([]model.PlanningSession, error) {
	q := `SELECT ` + sessionCols + ` FROM planning_sessions WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.Date.IsZero() {
		args = append(args, model.Day(f.Date))
		q += fmt.Sprintf(" AND planning_date = $%d", len(args))
	}
	if f.Unconsumed {
		q += " AND NOT consumed"
	}
	q += " ORDER BY planning_date, started_at"
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.PlanningSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, sess)
	}
	return res, rows.Err()
}
