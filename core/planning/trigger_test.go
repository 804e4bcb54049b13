package planning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/store"
	"github.com/fleetops/dispatchd/infra/logger"
)

func TestTriggerFilesRequestAtThreshold(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, nil)
	trigger := NewTrigger(f.engine, f.st, logger.NopLogger{}, TriggerConfig{Enabled: true, Threshold: 2})

	f.confirmedOrder(t, "o1", 500)
	trigger.poll(ctx)
	sessions, err := f.st.ListSessions(ctx, store.SessionFilter{})
	require.NoError(t, err)
	require.Empty(t, sessions, "below threshold")

	f.confirmedOrder(t, "o2", 500)
	trigger.poll(ctx)
	f.engine.Wait()

	sessions, err = f.st.ListSessions(ctx, store.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "trigger", sessions[0].RequestedBy)
	require.Equal(t, model.PlanningCompleted, sessions[0].Status)
}

func TestTriggerSkipsWhenProposalPending(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, nil)
	trigger := NewTrigger(f.engine, f.st, logger.NopLogger{}, TriggerConfig{Enabled: true, Threshold: 1})

	f.confirmedOrder(t, "o1", 500)
	trigger.poll(ctx)
	f.engine.Wait()

	// The first proposal is COMPLETED and undecided, so polling again must
	// not supersede it.
	trigger.poll(ctx)
	f.engine.Wait()
	sessions, err := f.st.ListSessions(ctx, store.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	// Once decided, the backlog is planned again on the next poll.
	_, err = f.engine.Reject(ctx, sessions[0].ID, "not today")
	require.NoError(t, err)
	trigger.poll(ctx)
	f.engine.Wait()
	sessions, err = f.st.ListSessions(ctx, store.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
}

func TestTriggerConfigDefaults(t *testing.T) {
	var cfg TriggerConfig
	cfg.SetDefaults()
	require.Equal(t, 10, cfg.Threshold)
	require.Equal(t, 60, cfg.IntervalSeconds)
	require.Equal(t, "1m0s", cfg.Interval().String())
}
