package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event represents a telemetry event emitted while building scenes.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// Script is the associated script name, if applicable.
	Script string `json:"script,omitempty"`

	// Node is the label of the associated node, if applicable.
	Node string `json:"node,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for scene events.
const (
	EventTypeScriptStarted   = "script.started"
	EventTypeScriptCompleted = "script.completed"
	EventTypeScriptFailed    = "script.failed"
	EventTypeAttachRejected  = "graph.attach_rejected"
	EventTypeModuleBuilt     = "graph.module_built"
	EventTypePolicyViolation = "policy.violation"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions. Subscribers
// are called one at a time in publishing order.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
		}
		select {
		case ep.buffer <- event:
			return nil
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishScriptStarted publishes a script started event.
func (ep *EventPublisher) PublishScriptStarted(script string) error {
	return ep.Publish(Event{
		Type:    EventTypeScriptStarted,
		Source:  "script",
		Script:  script,
		Message: fmt.Sprintf("Script %s started", script),
		Level:   EventLevelInfo,
	})
}

// PublishScriptCompleted publishes a script completed event.
func (ep *EventPublisher) PublishScriptCompleted(script string, nodes int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeScriptCompleted,
		Source:  "script",
		Script:  script,
		Message: fmt.Sprintf("Script %s built %d nodes", script, nodes),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"nodes":    nodes,
			"duration": duration.Seconds(),
		},
	})
}

// PublishScriptFailed publishes a script failed event.
func (ep *EventPublisher) PublishScriptFailed(script, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeScriptFailed,
		Source:  "script",
		Script:  script,
		Message: fmt.Sprintf("Script %s failed: %s", script, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishAttachRejected publishes a rejected attach.
func (ep *EventPublisher) PublishAttachRejected(code, parent, child, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeAttachRejected,
		Source:  "graph",
		Node:    child,
		Message: fmt.Sprintf("Attach of %s under %s rejected: %s", child, parent, reason),
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"code":   code,
			"parent": parent,
		},
	})
}

// PublishModuleBuilt publishes a built module template.
func (ep *EventPublisher) PublishModuleBuilt(root string, sites int) error {
	return ep.Publish(Event{
		Type:    EventTypeModuleBuilt,
		Source:  "graph",
		Node:    root,
		Message: fmt.Sprintf("Module %s built with %d attachment sites", root, sites),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"sites": sites,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(script, node, policyName, severity, reason string) error {
	level := EventLevelWarning
	if severity == "error" || severity == "critical" {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Source:  "policy_engine",
		Script:  script,
		Node:    node,
		Message: fmt.Sprintf("Policy %s: %s", policyName, reason),
		Level:   level,
		Data: map[string]interface{}{
			"policy":   policyName,
			"severity": severity,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents delivers buffered events in batches.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	flush := func() {
		for _, event := range batch {
			ep.deliverEvent(event)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			if len(batch) >= ep.config.MaxBatchSize || len(ep.buffer) == 0 {
				flush()
			}

		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	entries := ep.subscribers
	ep.mu.RUnlock()

	for _, entry := range entries {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown delivers pending events and stops the publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// LogSubscriber returns a subscriber that writes every event to logger at
// debug level.
func LogSubscriber(logger zerolog.Logger) EventSubscriber {
	return func(event Event) {
		logger.Debug().
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Str("event_level", event.Level).
			Str("source", event.Source).
			Str("script", event.Script).
			Str("node", event.Node).
			Msg(event.Message)
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByScript creates a filter that only allows events for a specific script.
func FilterByScript(script string) EventFilter {
	return func(event Event) bool {
		return event.Script == script
	}
}
