package events

import (
	"context"
)

// EventBus defines the interface for the event bus system
type EventBus interface {
	// Publish publishes an event and blocks until it is queued
	Publish(ctx context.Context, event Event) error

	// PublishAsync publishes an event without blocking; events are dropped
	// when the buffer is full
	PublishAsync(event Event) error

	// Subscribe registers a handler for events matching the filter
	Subscribe(filter EventFilter, handler EventHandler) (*Subscription, error)

	// Unsubscribe removes a subscription
	Unsubscribe(subscriptionID string) error

	// GetStats returns event bus statistics
	GetStats() EventStats

	// Start starts the event bus
	Start(ctx context.Context) error

	// Stop stops the event bus gracefully
	Stop(ctx context.Context) error
}
