package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/infra/logger"
)

const defaultEventTopic = "dispatch/planning/events"

// Publisher pushes planning session transitions to the broker. It implements
// the planning engine's Publisher port.
type Publisher struct {
	cli        pahoClient
	topic      string
	qos        byte
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// NewPublisher connects to the broker described by cfg.
func NewPublisher(cfg Config) (*Publisher, error) {
	log := logger.New("mqtt-publisher")
	cli, err := connect(cfg, log)
	if err != nil {
		return nil, err
	}
	topic := cfg.EventTopic
	if topic == "" {
		topic = defaultEventTopic
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := time.Duration(cfg.BackoffMS) * time.Millisecond
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &Publisher{cli: cli, topic: topic, qos: cfg.QoS, maxRetries: retries, backoff: backoff, log: log}, nil
}

// PublishPlanningEvent publishes the event as JSON, retrying with exponential
// backoff until the context expires or the retry budget runs out.
func (p *Publisher) PublishPlanningEvent(ctx context.Context, ev model.PlanningEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		token := p.cli.Publish(p.topic, p.qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.log.Debugw("published planning event", map[string]any{
				"planning_id": ev.PlanningID,
				"status":      string(ev.Status),
				"topic":       p.topic,
			})
			return nil
		}
		p.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *Publisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}

// MockPublisher records events in memory for tests.
type MockPublisher struct {
	mu     sync.Mutex
	Events []model.PlanningEvent
	Err    error
}

// NewMockPublisher creates an empty MockPublisher.
func NewMockPublisher() *MockPublisher { return &MockPublisher{} }

// PublishPlanningEvent records the event or returns the configured error.
func (m *MockPublisher) PublishPlanningEvent(_ context.Context, ev model.PlanningEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, ev)
	return nil
}

// Published returns a copy of the recorded events.
func (m *MockPublisher) Published() []model.PlanningEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PlanningEvent, len(m.Events))
	copy(out, m.Events)
	return out
}
