// pattern: Imperative Shell

// Package notify fans out "something changed" signals to subscribers.
package notify

import "sync"

// Broker delivers coalescing change signals. Each subscriber channel has a
// buffer of one: a signal sent while one is already pending is merged into
// it, so a slow subscriber re-reads state once instead of queueing.
type Broker struct {
	mu          sync.Mutex
	subscribers map[chan struct{}]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[chan struct{}]struct{}),
	}
}

// Subscribe returns a channel that receives a signal on each Notify call.
// The caller must call Unsubscribe when done.
func (b *Broker) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel. The channel is not closed, so
// a receiver racing with Unsubscribe never sees a spurious signal.
func (b *Broker) Unsubscribe(ch chan struct{}) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
}

// Notify signals all subscribers without blocking.
func (b *Broker) Notify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Count returns the number of current subscribers.
func (b *Broker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
