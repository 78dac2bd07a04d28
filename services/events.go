package services

import (
	"context"
	"sync"

	"roomie_server/logging"
	"roomie_server/models"
)

type EventType string

const (
	EventProfileUpdated EventType = "profile_updated"
	EventMessageCreated EventType = "message_created"
	EventUserDeleted    EventType = "user_deleted"
)

// Event is published after the write that caused it has committed.
type Event struct {
	Type    EventType
	UserID  string
	Profile *models.UserProfile
	Message *models.Message
}

type Handler func(ctx context.Context, e Event) error

type subscriber struct {
	name    string
	handler Handler
}

// EventBus runs registered handlers in the background. A failing handler
// is logged and never affects the publisher.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscriber
	wg       sync.WaitGroup
	logger   logging.Logger
}

func NewEventBus(logger logging.Logger) *EventBus {
	if logger == nil {
		logger = logging.Nop()
	}
	return &EventBus{handlers: map[EventType][]subscriber{}, logger: logger}
}

func (b *EventBus) Subscribe(t EventType, name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], subscriber{name: name, handler: h})
}

// Publish starts every handler for e.Type and returns immediately. Handlers
// outlive the publisher's request context.
func (b *EventBus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := append([]subscriber(nil), b.handlers[e.Type]...)
	b.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	for _, s := range subs {
		b.wg.Add(1)
		go func(s subscriber) {
			defer b.wg.Done()
			if err := s.handler(ctx, e); err != nil {
				b.logger.Error(ctx, "event handler failed", "handler", s.name, "event", e.Type, "userId", e.UserID, "error", err)
			}
		}(s)
	}
}

// Wait blocks until all started handlers have returned.
func (b *EventBus) Wait() {
	b.wg.Wait()
}
