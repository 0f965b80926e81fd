// Package events provides an event bus for cross-module notifications.
package events

import (
	"time"
)

// EventType represents the type of event
type EventType string

// System-wide event types
const (
	// Session lifecycle events
	EventSessionCreated   EventType = "session.created"
	EventSessionStarted   EventType = "session.started"
	EventSessionPaused    EventType = "session.paused"
	EventSessionResumed   EventType = "session.resumed"
	EventSessionCompleted EventType = "session.completed"
	EventSessionCancelled EventType = "session.cancelled"
	EventSessionDeleted   EventType = "session.deleted"

	// Ingestion events
	EventStreamStarted      EventType = "stream.started"
	EventStreamStopped      EventType = "stream.stopped"
	EventStreamReconciled   EventType = "stream.reconciled"
	EventStreamEntryExpired EventType = "stream.entry.expired"

	// Organization events
	EventOrganizationCreated EventType = "organization.created"
	EventUserCreated         EventType = "user.created"
	EventInvitationCreated   EventType = "invitation.created"
	EventInvitationAccepted  EventType = "invitation.accepted"
	EventSubscriptionChanged EventType = "subscription.changed"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"

	// General events
	EventError   EventType = "error"
	EventWarning EventType = "warning"
	EventInfo    EventType = "info"
)

// EventPriority represents the priority level of an event
type EventPriority int

const (
	PriorityLow      EventPriority = 1
	PriorityNormal   EventPriority = 5
	PriorityHigh     EventPriority = 10
	PriorityCritical EventPriority = 20
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Priority  EventPriority          `json:"priority"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler represents a function that handles events
type EventHandler func(event Event) error

// EventFilter represents filters for event subscriptions
type EventFilter struct {
	Types   []EventType `json:"types,omitempty"`
	Sources []string    `json:"sources,omitempty"`
}

// Subscription represents an event subscription
type Subscription struct {
	ID      string       `json:"id"`
	Filter  EventFilter  `json:"filter"`
	Handler EventHandler `json:"-"`
	Created time.Time    `json:"created"`
}

// EventStats contains event bus statistics
type EventStats struct {
	TotalPublished int64 `json:"total_published"`
	TotalDelivered int64 `json:"total_delivered"`
	TotalDropped   int64 `json:"total_dropped"`
	Subscriptions  int   `json:"subscriptions"`
}

// EventBusConfig configures the event bus
type EventBusConfig struct {
	BufferSize int `json:"buffer_size"`
}

// DefaultEventBusConfig returns sensible defaults
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{BufferSize: 256}
}
