package planning

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetops/dispatchd/core/model"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "planning.jsonl"))
	require.NoError(t, err)
	return j
}

func TestJournalAppendAndReplay(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	events := []model.PlanningEvent{
		{PlanningID: "s1", Status: model.PlanningInProgress, PlanningDate: day, Time: day.Add(8 * time.Hour)},
		{PlanningID: "s1", Status: model.PlanningCompleted, PlanningDate: day, Time: day.Add(9 * time.Hour)},
		{PlanningID: "s2", Status: model.PlanningInProgress, PlanningDate: day.AddDate(0, 0, 1), Time: day.Add(10 * time.Hour)},
	}
	for _, ev := range events {
		require.NoError(t, j.Append(ctx, ev))
	}

	all, err := j.Replay(ctx, JournalQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, events, all)

	bySession, err := j.Replay(ctx, JournalQuery{PlanningID: "s1"})
	require.NoError(t, err)
	require.Len(t, bySession, 2)

	byDate, err := j.Replay(ctx, JournalQuery{Date: day})
	require.NoError(t, err)
	require.Len(t, byDate, 2)

	byRange, err := j.Replay(ctx, JournalQuery{Start: day.Add(9 * time.Hour), End: day.Add(9 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, byRange, 1)
	require.Equal(t, model.PlanningCompleted, byRange[0].Status)
}

func TestJournalSkipsCorruptLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "planning.jsonl")
	j, err := NewJournal(path)
	require.NoError(t, err)

	require.NoError(t, j.Append(ctx, model.PlanningEvent{PlanningID: "s1", Status: model.PlanningInProgress}))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, j.Append(ctx, model.PlanningEvent{PlanningID: "s2", Status: model.PlanningFailed}))

	all, err := j.Replay(ctx, JournalQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "s1", all[0].PlanningID)
	require.Equal(t, "s2", all[1].PlanningID)
}
