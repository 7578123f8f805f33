package crm

import (
	"context"
	"sync"
)

// subscriberBuffer is the per-subscriber queue depth. A subscriber that
// falls behind loses events rather than stalling writers; one pending
// event is enough to trigger a refresh.
const subscriberBuffer = 16

// Broadcaster fans committed writes out to change-feed subscribers.
// Stores embed it and call Publish after each successful write.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	ch          chan Change
	collections map[Collection]bool
	once        sync.Once
}

// Subscribe registers for changes on the given collections (all when none
// given). The subscription ends when ctx is done or cancel is called.
func (b *Broadcaster) Subscribe(ctx context.Context, collections ...Collection) (<-chan Change, func()) {
	sub := &subscription{
		ch:          make(chan Change, subscriberBuffer),
		collections: make(map[Collection]bool, len(collections)),
	}
	for _, c := range collections {
		sub.collections[c] = true
	}

	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[int]*subscription)
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	done := make(chan struct{})
	cancel := func() {
		sub.once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(sub.ch)
			b.mu.Unlock()
			close(done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return sub.ch, cancel
}

// Publish delivers c to every matching subscriber without blocking.
func (b *Broadcaster) Publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if len(sub.collections) > 0 && !sub.collections[c.Collection] {
			continue
		}
		select {
		case sub.ch <- c:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
