// Package planning implements the asynchronous auto-planning workflow:
// sessions, the proposal engine, the accept/reject/consume protocol, the
// event journal and the threshold trigger.
package planning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fleetops/dispatchd/core/availability"
	"github.com/fleetops/dispatchd/core/logger"
	"github.com/fleetops/dispatchd/core/metrics"
	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/routes"
	"github.com/fleetops/dispatchd/core/store"
	"github.com/fleetops/dispatchd/internal/eventbus"
)

// Publisher pushes planning events to an external system. Implementations
// must not block; the MQTT publisher lives in infra/mqtt.
type Publisher interface {
	PublishPlanningEvent(ctx context.Context, ev model.PlanningEvent) error
}

// Engine runs auto-planning sessions, one goroutine per session. A fresh
// request for a date supersedes the in-flight session for that date. The
// engine never mutates committed routes or orders until a proposal is
// accepted.
type Engine struct {
	store     store.Store
	planner   *routes.Planner
	resolver  *availability.Resolver
	bus       *eventbus.Bus[model.PlanningEvent]
	journal   *Journal
	publisher Publisher
	sink      metrics.MetricsSink
	log       logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	running map[string]*run // keyed by calendar date
	wg      sync.WaitGroup
}

type run struct {
	sessionID string
	cancel    context.CancelFunc
}

// NewEngine creates an Engine. journal and publisher may be nil.
func NewEngine(st store.Store, planner *routes.Planner, resolver *availability.Resolver, journal *Journal, publisher Publisher, sink metrics.MetricsSink, log logger.Logger) *Engine {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Engine{
		store:     st,
		planner:   planner,
		resolver:  resolver,
		bus:       eventbus.New[model.PlanningEvent](),
		journal:   journal,
		publisher: publisher,
		sink:      sink,
		log:       log,
		now:       time.Now,
		running:   map[string]*run{},
	}
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Events returns a channel of session transitions. Callers unsubscribe with
// the returned cancel function.
func (e *Engine) Events() (<-chan model.PlanningEvent, func()) {
	ch := e.bus.Subscribe()
	return ch, func() { e.bus.Unsubscribe(ch) }
}

// Request starts a new auto-planning session for the date and returns it
// immediately; the proposal is computed in the background. An in-flight
// session for the same date is cancelled and any undecided earlier proposal
// for the date is rejected as superseded. With no explicit order IDs the
// whole assignable pool for the date is planned.
func (e *Engine) Request(ctx context.Context, orderIDs []string, date time.Time, requestedBy string) (model.PlanningSession, error) {
	day := model.Day(date)
	if day.Before(model.Day(e.now())) {
		return model.PlanningSession{}, fmt.Errorf("%w: cannot plan a past date", model.ErrInvalidInput)
	}

	orders, err := e.resolvePool(ctx, orderIDs, day)
	if err != nil {
		return model.PlanningSession{}, err
	}
	if len(orders) == 0 {
		return model.PlanningSession{}, fmt.Errorf("%w: no assignable orders for %s", model.ErrOrderNotEligible, day.Format(time.DateOnly))
	}

	sess := model.PlanningSession{
		Status:       model.PlanningInProgress,
		PlanningDate: day,
		RequestedBy:  requestedBy,
	}
	for _, o := range orders {
		sess.OrderIDs = append(sess.OrderIDs, o.ID)
	}
	sess, err = e.store.CreateSession(ctx, sess)
	if err != nil {
		return model.PlanningSession{}, err
	}

	e.supersede(ctx, day, sess.ID)

	runCtx, cancel := context.WithCancel(context.Background())
	key := day.Format(time.DateOnly)
	e.mu.Lock()
	e.running[key] = &run{sessionID: sess.ID, cancel: cancel}
	e.mu.Unlock()

	e.emit(sess)
	e.wg.Add(1)
	go e.compute(runCtx, sess, orders)

	e.log.Infof("planning session %s started for %s (%d orders)", sess.ID, key, len(orders))
	return sess, nil
}

func (e *Engine) resolvePool(ctx context.Context, orderIDs []string, day time.Time) ([]model.Order, error) {
	if len(orderIDs) == 0 {
		candidates, err := e.store.ListOrders(ctx, store.OrderFilter{Status: model.OrderConfirmed, Unassigned: true})
		if err != nil {
			return nil, err
		}
		var pool []model.Order
		for _, o := range candidates {
			if o.EligibleFor(day) {
				pool = append(pool, o)
			}
		}
		return pool, nil
	}
	pool := make([]model.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		o, err := e.store.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if o.Status != model.OrderConfirmed || o.Assigned() {
			return nil, fmt.Errorf("%w: order %s is not assignable", model.ErrOrderNotEligible, id)
		}
		if !o.EligibleFor(day) {
			return nil, fmt.Errorf("%w: order %s window does not cover %s", model.ErrOrderNotEligible, id, day.Format(time.DateOnly))
		}
		pool = append(pool, o)
	}
	return pool, nil
}

// supersede cancels the in-flight session for the date and rejects earlier
// undecided proposals, keeping at most one live session per date.
func (e *Engine) supersede(ctx context.Context, day time.Time, newSessionID string) {
	key := day.Format(time.DateOnly)
	e.mu.Lock()
	if r, ok := e.running[key]; ok && r.sessionID != newSessionID {
		r.cancel()
		delete(e.running, key)
		e.log.Infof("planning session %s superseded by %s", r.sessionID, newSessionID)
	}
	e.mu.Unlock()

	stale, err := e.store.ListSessions(ctx, store.SessionFilter{Status: model.PlanningCompleted, Date: day})
	if err != nil {
		e.log.Warnf("listing sessions to supersede: %v", err)
		return
	}
	for _, s := range stale {
		if s.ID == newSessionID {
			continue
		}
		s.Status = model.PlanningRejected
		s.Reason = "superseded by a newer request"
		s.FinishedAt = e.now().UTC()
		if _, err := e.store.UpdateSession(ctx, s); err != nil {
			e.log.Warnf("superseding session %s: %v", s.ID, err)
			continue
		}
		e.emit(s)
	}
}

// compute builds the proposal for one session in the background.
func (e *Engine) compute(ctx context.Context, sess model.PlanningSession, orders []model.Order) {
	defer e.wg.Done()
	started := e.now()

	candidates, err := e.propose(ctx, sess.PlanningDate, orders)
	switch {
	case ctx.Err() != nil:
		sess.Status = model.PlanningFailed
		sess.Reason = "cancelled before completion"
	case err != nil:
		sess.Status = model.PlanningFailed
		sess.Reason = err.Error()
	default:
		sess.Status = model.PlanningCompleted
		sess.Routes = candidates
	}
	sess.FinishedAt = e.now().UTC()

	key := sess.PlanningDate.Format(time.DateOnly)
	e.mu.Lock()
	if r, ok := e.running[key]; ok && r.sessionID == sess.ID {
		delete(e.running, key)
	}
	e.mu.Unlock()

	if _, err := e.store.UpdateSession(context.Background(), sess); err != nil {
		e.log.Errorf("persisting planning session %s: %v", sess.ID, err)
		return
	}
	e.emit(sess)
	e.record(sess, time.Since(started))
	if sess.Status == model.PlanningFailed {
		e.log.Warnf("planning session %s failed: %s", sess.ID, sess.Reason)
	} else {
		e.log.Infof("planning session %s completed with %d routes", sess.ID, len(sess.Routes))
	}
}

// propose snapshots availability, packs orders onto driver/vehicle pairs and
// shapes one candidate route per pair. It reads committed state but never
// writes it.
func (e *Engine) propose(ctx context.Context, day time.Time, orders []model.Order) ([]model.CandidateRoute, error) {
	drivers, err := e.resolver.AvailableDrivers(ctx, day, nil)
	if err != nil {
		return nil, err
	}
	vehicles, err := e.resolver.AvailableVehicles(ctx, day, 0)
	if err != nil {
		return nil, err
	}
	if len(drivers) == 0 || len(vehicles) == 0 {
		return nil, fmt.Errorf("%w: no drivers or vehicles available on %s", model.ErrPlanningFailed, day.Format(time.DateOnly))
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	bins, err := packOrders(orders, drivers, vehicles)
	if err != nil {
		return nil, err
	}

	candidates := make([]model.CandidateRoute, 0, len(bins))
	for _, b := range bins {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c, err := e.planner.Candidate(ctx, b.driver.ID, b.vehicle.ID, b.orders)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// Cancel aborts an IN_PROGRESS session.
func (e *Engine) Cancel(ctx context.Context, sessionID string) error {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != model.PlanningInProgress {
		return fmt.Errorf("%w: session %s is %s, only in-progress sessions can be cancelled", model.ErrInvalidStateTransition, sessionID, sess.Status)
	}
	key := model.Day(sess.PlanningDate).Format(time.DateOnly)
	e.mu.Lock()
	if r, ok := e.running[key]; ok && r.sessionID == sessionID {
		r.cancel()
		delete(e.running, key)
	}
	e.mu.Unlock()
	return nil
}

// Accept re-validates every candidate route and commits them all in one
// atomic store commit. Any route failing validation, or losing the
// uniqueness race inside the commit, aborts the whole acceptance and the
// session stays COMPLETED.
func (e *Engine) Accept(ctx context.Context, sessionID string) (model.PlanningSession, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return model.PlanningSession{}, err
	}
	if sess.Status != model.PlanningCompleted {
		return model.PlanningSession{}, fmt.Errorf("%w: session %s is %s, expected %s", model.ErrInvalidStateTransition, sessionID, sess.Status, model.PlanningCompleted)
	}

	commits := make([]store.RouteCommit, 0, len(sess.Routes))
	for _, c := range sess.Routes {
		commit, err := e.planner.Prepare(ctx, routes.PlanInput{
			DriverID:  c.DriverID,
			VehicleID: c.VehicleID,
			RouteDate: sess.PlanningDate,
			OrderIDs:  c.OrderIDs,
		})
		if err != nil {
			return model.PlanningSession{}, fmt.Errorf("proposal is stale: %w", err)
		}
		commits = append(commits, commit)
	}
	if _, err := e.planner.CommitPrepared(ctx, commits, "auto"); err != nil {
		return model.PlanningSession{}, err
	}

	sess.Status = model.PlanningAccepted
	sess.FinishedAt = e.now().UTC()
	sess, err = e.store.UpdateSession(ctx, sess)
	if err != nil {
		return model.PlanningSession{}, err
	}
	e.emit(sess)
	e.log.Infof("planning session %s accepted, %d routes committed", sessionID, len(commits))
	return sess, nil
}

// Reject discards a COMPLETED proposal without touching committed state.
func (e *Engine) Reject(ctx context.Context, sessionID, reason string) (model.PlanningSession, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return model.PlanningSession{}, err
	}
	if sess.Status != model.PlanningCompleted {
		return model.PlanningSession{}, fmt.Errorf("%w: session %s is %s, expected %s", model.ErrInvalidStateTransition, sessionID, sess.Status, model.PlanningCompleted)
	}
	sess.Status = model.PlanningRejected
	sess.Reason = reason
	sess.FinishedAt = e.now().UTC()
	sess, err = e.store.UpdateSession(ctx, sess)
	if err != nil {
		return model.PlanningSession{}, err
	}
	e.emit(sess)
	return sess, nil
}

// Consume marks a finished session as seen by the requesting client.
// Consuming an already consumed session is a no-op.
func (e *Engine) Consume(ctx context.Context, sessionID string) (model.PlanningSession, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return model.PlanningSession{}, err
	}
	if sess.Status == model.PlanningInProgress {
		return model.PlanningSession{}, fmt.Errorf("%w: session %s is still in progress", model.ErrInvalidStateTransition, sessionID)
	}
	if sess.Consumed {
		return sess, nil
	}
	sess.Consumed = true
	return e.store.UpdateSession(ctx, sess)
}

// Get returns one session.
func (e *Engine) Get(ctx context.Context, sessionID string) (model.PlanningSession, error) {
	return e.store.GetSession(ctx, sessionID)
}

// List returns sessions matching the filter.
func (e *Engine) List(ctx context.Context, f store.SessionFilter) ([]model.PlanningSession, error) {
	return e.store.ListSessions(ctx, f)
}

// Unconsumed returns finished sessions for the date not yet seen by a client.
func (e *Engine) Unconsumed(ctx context.Context, date time.Time) ([]model.PlanningSession, error) {
	all, err := e.store.ListSessions(ctx, store.SessionFilter{Date: model.Day(date), Unconsumed: true})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, s := range all {
		if s.Status != model.PlanningInProgress {
			out = append(out, s)
		}
	}
	return out, nil
}

// Shutdown cancels every in-flight session and waits for their goroutines.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	for key, r := range e.running {
		r.cancel()
		delete(e.running, key)
	}
	e.mu.Unlock()
	e.wg.Wait()
	e.bus.Close()
}

// Wait blocks until no session goroutine is running, for tests.
func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) emit(sess model.PlanningSession) {
	ev := model.PlanningEvent{
		PlanningID:   sess.ID,
		Status:       sess.Status,
		PlanningDate: sess.PlanningDate,
		Time:         time.Now().UTC(),
	}
	e.bus.Publish(ev)
	if e.journal != nil {
		if err := e.journal.Append(context.Background(), ev); err != nil {
			e.log.Warnf("journal append: %v", err)
		}
	}
	if e.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.publisher.PublishPlanningEvent(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Warnf("publishing planning event: %v", err)
		}
		cancel()
	}
}

func (e *Engine) record(sess model.PlanningSession, took time.Duration) {
	ev := metrics.PlanningSessionEvent{
		PlanningID: sess.ID,
		Status:     string(sess.Status),
		RouteDate:  sess.PlanningDate,
		Orders:     len(sess.OrderIDs),
		Routes:     len(sess.Routes),
		Duration:   took,
		Time:       time.Now().UTC(),
	}
	if err := e.sink.RecordPlanningSession(ev); err != nil {
		e.log.Warnf("planning metrics: %v", err)
	}
}
