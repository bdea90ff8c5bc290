package infrastructure

import (
	"log/slog"
	"sync"
)

// Event names published by the pipeline and its collaborators.
const (
	EventIntakeCreated    = "intake:created"
	EventAwaitingApproval = "intake:awaiting_approval"
	EventAutomationDone   = "automation:completed"
	EventAutomationFailed = "automation:failed"
	EventCalendarCreated  = "calendar:event_created"
	EventCallbackReceived = "webhook:callback_received"
)

// Bus is in-process publish/subscribe keyed by event name. Delivery is
// at-least-once within the process: no persistence, no redelivery after a
// restart. A panicking listener is isolated so the remaining listeners and
// the publisher are unaffected.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]func(payload map[string]interface{})
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[string][]func(payload map[string]interface{}))}
}

// Subscribe registers a listener for an event name.
func (b *Bus) Subscribe(event string, fn func(payload map[string]interface{})) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[event] = append(b.listeners[event], fn)
}

// Publish invokes every listener for the event synchronously, isolating
// panics per listener.
func (b *Bus) Publish(event string, payload map[string]interface{}) {
	b.mu.RLock()
	fns := make([]func(map[string]interface{}), len(b.listeners[event]))
	copy(fns, b.listeners[event])
	b.mu.RUnlock()

	for _, fn := range fns {
		b.invoke(event, fn, payload)
	}
}

// PublishAsync fires the listeners in a goroutine. Appropriate for
// secondary notifications the caller does not need to await.
func (b *Bus) PublishAsync(event string, payload map[string]interface{}) {
	go b.Publish(event, payload)
}

func (b *Bus) invoke(event string, fn func(map[string]interface{}), payload map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event listener panicked", "event", event, "panic", r)
		}
	}()
	fn(payload)
}
