package ports

import "context"

const (
	// EventRunStarted is emitted once a run has been validated and dispatching begins.
	EventRunStarted = "run.started"
	// EventRunCompleted is emitted when every node succeeded.
	EventRunCompleted = "run.completed"
	// EventRunFailed is emitted when a run finished with at least one unsuccessful node,
	// or could not start at all.
	EventRunFailed = "run.failed"
	// EventRunCancelled is emitted when a run stopped because of cancellation.
	EventRunCancelled = "run.cancelled"
	// EventNodeFinished is emitted for every node once it reaches a terminal status.
	EventNodeFinished = "node.finished"
	// EventRunArchived is emitted after a run result has been persisted.
	EventRunArchived = "run.archived"
)

// DomainEvent represents a significant occurrence within the domain or
// application layer. Events carry structured payloads that downstream
// subscribers can use for logging, UI updates, or integrations.
type DomainEvent interface {
	EventType() string
	Payload() interface{}
}

// EventPublisher distributes lifecycle events to interested subscribers.
// Dispatch is synchronous: Publish blocks until all handlers run.
// Implementations must be thread-safe.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
}

// EventHandler processes an event of a specific type. Failures should be
// surfaced via returned errors so publishers can log diagnostics and continue
// delivering to remaining subscribers.
type EventHandler func(context.Context, DomainEvent) error

// Subscription represents a registered handler. Callers must invoke
// Unsubscribe to stop receiving events and release resources.
type Subscription interface {
	Unsubscribe()
}
