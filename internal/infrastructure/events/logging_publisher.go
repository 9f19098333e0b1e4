package events

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

// LoggingPublisher renders run lifecycle events as structured log entries and
// forwards them to subscribed handlers.
type LoggingPublisher struct {
	logger ports.Logger
	subs   map[string][]subscriptionEntry
	nextID int
	mu     sync.RWMutex
}

// NewLoggingPublisher creates a publisher writing each event through logger.
func NewLoggingPublisher(logger ports.Logger) *LoggingPublisher {
	return &LoggingPublisher{
		logger: logger,
		subs:   make(map[string][]subscriptionEntry),
	}
}

// Publish logs the event and then invokes handlers registered for its type or
// for the wildcard "*". A failing or panicking handler does not stop delivery
// to the others.
func (p *LoggingPublisher) Publish(ctx context.Context, event ports.DomainEvent) error {
	if p == nil || event == nil {
		return nil
	}

	p.mu.RLock()
	handlers := append([]subscriptionEntry(nil), p.subs[event.EventType()]...)
	handlers = append(handlers, p.subs["*"]...)
	p.mu.RUnlock()

	if p.logger != nil {
		fields := append([]interface{}{"event_type", event.EventType()}, payloadFields(event.Payload())...)
		switch event.EventType() {
		case ports.EventRunFailed, ports.EventRunCancelled:
			p.logger.Warn(ctx, "run event", fields...)
		case ports.EventNodeFinished:
			p.logger.Debug(ctx, "run event", fields...)
		default:
			p.logger.Info(ctx, "run event", fields...)
		}
	}

	for _, entry := range handlers {
		if err := p.dispatch(ctx, entry.handler, event); err != nil && p.logger != nil {
			p.logger.Warn(ctx, "event handler failed", "event_type", event.EventType(), "error", err)
		}
	}
	return nil
}

func (p *LoggingPublisher) dispatch(ctx context.Context, handler ports.EventHandler, event ports.DomainEvent) (err error) {
	if handler == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

// Subscribe registers a handler for eventType; "*" receives every event.
func (p *LoggingPublisher) Subscribe(eventType string, handler ports.EventHandler) (ports.Subscription, error) {
	if p == nil || handler == nil {
		return noopSubscription{}, nil
	}
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.subs[eventType] = append(p.subs[eventType], subscriptionEntry{id: id, handler: handler})
	p.mu.Unlock()

	var once sync.Once
	return subscription{
		cancel: func() {
			once.Do(func() {
				p.mu.Lock()
				defer p.mu.Unlock()
				handlers := p.subs[eventType]
				for i, entry := range handlers {
					if entry.id == id {
						p.subs[eventType] = append(handlers[:i:i], handlers[i+1:]...)
						break
					}
				}
			})
		},
	}, nil
}

func payloadFields(payload interface{}) []interface{} {
	switch v := payload.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fields := make([]interface{}, 0, len(keys)*2)
		for _, key := range keys {
			fields = append(fields, key, v[key])
		}
		return fields
	default:
		return []interface{}{"payload", v}
	}
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

type subscription struct {
	cancel func()
}

func (s subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}

type subscriptionEntry struct {
	id      int
	handler ports.EventHandler
}

// Event is a plain DomainEvent implementation.
type Event struct {
	Type string
	Data map[string]interface{}
}

// EventType implements ports.DomainEvent.
func (e Event) EventType() string { return e.Type }

// Payload implements ports.DomainEvent.
func (e Event) Payload() interface{} { return e.Data }
