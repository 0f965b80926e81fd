package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/pulpitworks/sermonscribe/internal/logger"
)

// eventBus implements the EventBus interface with a buffered async
// dispatch loop.
type eventBus struct {
	config EventBusConfig

	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	eventChannel  chan Event
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup

	stats EventStats
}

// NewEventBus creates a new event bus instance
func NewEventBus(config EventBusConfig) EventBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultEventBusConfig().BufferSize
	}
	return &eventBus{
		config:        config,
		subscriptions: make(map[string]*Subscription),
		eventChannel:  make(chan Event, config.BufferSize),
		stopCh:        make(chan struct{}),
	}
}

// Start starts the event bus
func (eb *eventBus) Start(ctx context.Context) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.running {
		return fmt.Errorf("event bus is already running")
	}

	eb.running = true
	eb.stopCh = make(chan struct{})

	eb.wg.Add(1)
	go eb.processEvents(ctx)

	logger.Info("event bus started", "buffer_size", eb.config.BufferSize)
	return nil
}

// Stop stops the event bus gracefully
func (eb *eventBus) Stop(ctx context.Context) error {
	eb.mu.Lock()
	if !eb.running {
		eb.mu.Unlock()
		return nil
	}
	eb.running = false
	eb.mu.Unlock()

	close(eb.stopCh)

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	logger.Info("event bus stopped")
	return nil
}

// Publish publishes an event and blocks until queued or ctx is done
func (eb *eventBus) Publish(ctx context.Context, event Event) error {
	eb.prepare(&event)

	select {
	case eb.eventChannel <- event:
		eb.mu.Lock()
		eb.stats.TotalPublished++
		eb.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-eb.stopCh:
		return fmt.Errorf("event bus is stopped")
	}
}

// PublishAsync publishes an event without blocking
func (eb *eventBus) PublishAsync(event Event) error {
	eb.prepare(&event)

	select {
	case eb.eventChannel <- event:
		eb.mu.Lock()
		eb.stats.TotalPublished++
		eb.mu.Unlock()
		return nil
	default:
		eb.mu.Lock()
		eb.stats.TotalDropped++
		eb.mu.Unlock()
		logger.Warn("event dropped, bus buffer full", "type", event.Type)
		return fmt.Errorf("event buffer full")
	}
}

// Subscribe registers a handler for events matching the filter
func (eb *eventBus) Subscribe(filter EventFilter, handler EventHandler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler must not be nil")
	}

	sub := &Subscription{
		ID:      generateEventID(),
		Filter:  filter,
		Handler: handler,
		Created: time.Now(),
	}

	eb.mu.Lock()
	eb.subscriptions[sub.ID] = sub
	eb.stats.Subscriptions = len(eb.subscriptions)
	eb.mu.Unlock()

	return sub, nil
}

// Unsubscribe removes a subscription
func (eb *eventBus) Unsubscribe(subscriptionID string) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, exists := eb.subscriptions[subscriptionID]; !exists {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(eb.subscriptions, subscriptionID)
	eb.stats.Subscriptions = len(eb.subscriptions)
	return nil
}

// GetStats returns event bus statistics
func (eb *eventBus) GetStats() EventStats {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return eb.stats
}

func (eb *eventBus) processEvents(ctx context.Context) {
	defer eb.wg.Done()

	for {
		select {
		case event := <-eb.eventChannel:
			eb.dispatch(event)
		case <-eb.stopCh:
			// Drain remaining events before exiting
			for {
				select {
				case event := <-eb.eventChannel:
					eb.dispatch(event)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (eb *eventBus) dispatch(event Event) {
	eb.mu.RLock()
	subs := make([]*Subscription, 0, len(eb.subscriptions))
	for _, sub := range eb.subscriptions {
		if matchesFilter(event, sub.Filter) {
			subs = append(subs, sub)
		}
	}
	eb.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.Handler(event); err != nil {
			logger.Warn("event handler failed",
				"subscription", sub.ID,
				"type", event.Type,
				"error", err,
			)
			continue
		}
		eb.mu.Lock()
		eb.stats.TotalDelivered++
		eb.mu.Unlock()
	}
}

func matchesFilter(event Event, filter EventFilter) bool {
	if len(filter.Types) > 0 {
		matched := false
		for _, t := range filter.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(filter.Sources) > 0 {
		matched := false
		for _, s := range filter.Sources {
			if event.Source == s {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

func (eb *eventBus) prepare(event *Event) {
	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Priority == 0 {
		event.Priority = PriorityNormal
	}
}

func generateEventID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("evt-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// NewSystemEvent creates an event sourced from the system itself
func NewSystemEvent(eventType EventType, title, message string) Event {
	return Event{
		Type:      eventType,
		Source:    "system",
		Title:     title,
		Message:   message,
		Priority:  PriorityNormal,
		Timestamp: time.Now(),
	}
}
