package events

import (
	"sync"

	"github.com/hubfold/tokend/logger"
)

// Handler receives published events. Handlers must not block for long;
// the bus dispatches synchronously unless configured otherwise.
type Handler func(Event)

// Bus is an in-process publish/subscribe dispatcher for token
// lifecycle events.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      logger.Logger
	parallel bool
}

// BusConfig contains configuration for the event bus
type BusConfig struct {
	// Parallel dispatches each event to handlers concurrently. Leave
	// false if handlers rely on ordering.
	Parallel bool

	Logger logger.Logger
}

// NewBus creates a new event bus
func NewBus(log logger.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// NewBusWithConfig creates a new event bus with custom configuration
func NewBusWithConfig(config BusConfig) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		log:      config.Logger,
		parallel: config.Parallel,
	}
}

// Subscribe registers a handler for the given event type
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish delivers an event to every handler subscribed to its type
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.EventType()]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	if b.log != nil {
		b.log.Debug("publishing event",
			logger.String("event_type", event.EventType()),
			logger.Int("handlers", len(handlers)))
	}

	if b.parallel {
		var wg sync.WaitGroup
		for _, handler := range handlers {
			wg.Add(1)
			go func(h Handler) {
				defer wg.Done()
				h(event)
			}(handler)
		}
		wg.Wait()
		return
	}

	for _, handler := range handlers {
		handler(event)
	}
}
