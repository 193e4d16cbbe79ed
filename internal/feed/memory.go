package feed

import (
	"context"
	"sync"
)

// InMemory is a process-local broker for dev and tests.
type InMemory struct {
	mu     sync.Mutex
	size   int
	topics map[string]map[chan Change]struct{}
}

// NewInMemory creates a broker whose subscriber buffers hold size changes.
func NewInMemory(size int) *InMemory {
	if size <= 0 {
		size = 16
	}
	return &InMemory{size: size, topics: make(map[string]map[chan Change]struct{})}
}

// Publish delivers c to every subscriber of topic. A subscriber whose buffer
// is full already has a re-read queued, so the change is dropped for it.
func (b *InMemory) Publish(ctx context.Context, topic string, c Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.topics[topic] {
		select {
		case ch <- c:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber on topic.
func (b *InMemory) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ch := make(chan Change, b.size)
	b.mu.Lock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[chan Change]struct{})
	}
	b.topics[topic][ch] = struct{}{}
	b.mu.Unlock()

	done := make(chan struct{})
	sub := newSubscription(ch, func() {
		close(done)
		b.mu.Lock()
		delete(b.topics[topic], ch)
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
		close(ch)
		b.mu.Unlock()
	})
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-done:
		}
	}()
	return sub, nil
}

// Subscribers returns the number of live subscribers on topic.
func (b *InMemory) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}
