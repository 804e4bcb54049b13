package planning

import (
	"context"
	"errors"
	"time"

	"github.com/fleetops/dispatchd/core/logger"
	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/store"
)

// Trigger polls the backlog of assignable orders and files an auto-planning
// request for the next day once the backlog reaches the threshold.
type Trigger struct {
	engine *Engine
	store  store.Store
	log    logger.Logger
	cfg    TriggerConfig
}

// NewTrigger creates a Trigger.
func NewTrigger(engine *Engine, st store.Store, log logger.Logger, cfg TriggerConfig) *Trigger {
	cfg.SetDefaults()
	return &Trigger{engine: engine, store: st, log: log, cfg: cfg}
}

// Run polls until the context is cancelled. It is intended to be launched as
// a goroutine by the service runner.
func (t *Trigger) Run(ctx context.Context) {
	if !t.cfg.Enabled {
		return
	}
	ticker := time.NewTicker(t.cfg.Interval())
	defer ticker.Stop()
	t.log.Infof("planning trigger running: threshold %d, poll %s", t.cfg.Threshold, t.cfg.Interval())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(ctx)
		}
	}
}

func (t *Trigger) poll(ctx context.Context) {
	tomorrow := model.Day(time.Now()).AddDate(0, 0, 1)
	candidates, err := t.store.ListOrders(ctx, store.OrderFilter{Status: model.OrderConfirmed, Unassigned: true})
	if err != nil {
		t.log.Warnf("trigger backlog query: %v", err)
		return
	}
	var backlog int
	for _, o := range candidates {
		if o.EligibleFor(tomorrow) {
			backlog++
		}
	}
	if backlog < t.cfg.Threshold {
		return
	}

	// Skip when a session for tomorrow is already live or awaiting a
	// decision, so the trigger does not supersede a dispatcher's session.
	sessions, err := t.store.ListSessions(ctx, store.SessionFilter{Date: tomorrow})
	if err != nil {
		t.log.Warnf("trigger session query: %v", err)
		return
	}
	for _, s := range sessions {
		if s.Status == model.PlanningInProgress || s.Status == model.PlanningCompleted {
			return
		}
	}

	t.log.Infof("backlog of %d orders reached threshold %d, requesting auto-planning for %s",
		backlog, t.cfg.Threshold, tomorrow.Format(time.DateOnly))
	if _, err := t.engine.Request(ctx, nil, tomorrow, "trigger"); err != nil && !errors.Is(err, model.ErrOrderNotEligible) {
		t.log.Warnf("trigger planning request: %v", err)
	}
}
