package planning

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/fleetops/dispatchd/core/model"
)

// Journal persists planning events to an append-only JSONL file so session
// history survives restarts and can be replayed for audit.
type Journal struct {
	path string
	mu   sync.Mutex
}

// NewJournal creates the journal file if it does not exist.
func NewJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &Journal{path: path}, nil
}

// Append writes one event as a JSON line.
func (j *Journal) Append(ctx context.Context, ev model.PlanningEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(ev)
}

// JournalQuery filters replayed events. Zero values match everything.
type JournalQuery struct {
	PlanningID string
	Date       time.Time
	Start      time.Time
	End        time.Time
}

// Replay reads back events matching the query in append order. Corrupt lines
// are skipped.
func (j *Journal) Replay(ctx context.Context, q JournalQuery) ([]model.PlanningEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.Open(j.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var res []model.PlanningEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev model.PlanningEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if q.PlanningID != "" && ev.PlanningID != q.PlanningID {
			continue
		}
		if !q.Date.IsZero() && !model.SameDay(ev.PlanningDate, q.Date) {
			continue
		}
		if !q.Start.IsZero() && ev.Time.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && ev.Time.After(q.End) {
			continue
		}
		res = append(res, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
