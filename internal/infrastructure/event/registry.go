package event

import (
	"sync"

	"github.com/coopaguas/backend/internal/domain/shared"
)

// HandlerRegistry keeps track of which handlers subscribe to which event types
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler
	// wildcard handlers receive every event
	wildcard []shared.EventHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string][]shared.EventHandler),
	}
}

// Register subscribes a handler to the given event types. No types means
// the handler receives all events.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = append(r.wildcard, handler)
		return
	}
	for _, eventType := range eventTypes {
		r.handlers[eventType] = append(r.handlers[eventType], handler)
	}
}

// Unregister removes a handler from every subscription
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for eventType, list := range r.handlers {
		r.handlers[eventType] = removeHandler(list, handler)
	}
	r.wildcard = removeHandler(r.wildcard, handler)
}

// GetHandlers returns the handlers subscribed to an event type, including
// wildcard subscribers
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]shared.EventHandler, 0, len(r.handlers[eventType])+len(r.wildcard))
	result = append(result, r.handlers[eventType]...)
	result = append(result, r.wildcard...)
	return result
}

func removeHandler(list []shared.EventHandler, handler shared.EventHandler) []shared.EventHandler {
	filtered := list[:0]
	for _, h := range list {
		if h != handler {
			filtered = append(filtered, h)
		}
	}
	return filtered
}
