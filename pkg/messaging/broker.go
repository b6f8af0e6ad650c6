package messaging

import (
	"fmt"
	"sync"
)

// SimpleBroker implements Broker with non-blocking channel sends.
// subscribers maps subscriber IDs to their channels
type SimpleBroker struct {
	subscribers map[string]chan<- Event
	mu          sync.RWMutex
}

// NewBroker creates a new event broker
func NewBroker() *SimpleBroker {
	return &SimpleBroker{
		subscribers: make(map[string]chan<- Event),
	}
}

// Publish delivers evt to every subscriber. Delivery continues past a full
// channel; the returned error names every subscriber that missed the event.
func (b *SimpleBroker) Publish(evt Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var full []string
	for id, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			full = append(full, id)
		}
	}

	if len(full) > 0 {
		return fmt.Errorf("subscriber channels full: %v", full)
	}
	return nil
}

func (b *SimpleBroker) Subscribe(id string, ch chan<- Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; exists {
		return fmt.Errorf("%s is already subscribed", id)
	}

	b.subscribers[id] = ch
	return nil
}

func (b *SimpleBroker) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return fmt.Errorf("%s is not subscribed", id)
	}

	delete(b.subscribers, id)
	return nil
}

func (b *SimpleBroker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]chan<- Event)
}
