// Package eventbus implements a channel-keyed publish/subscribe fan-out.
// Subscribers attach to a named channel; publishes to one channel reach its
// subscribers in publish order. Delivery never blocks the publisher: a
// subscriber that falls behind loses events.
package eventbus

import "sync"

// Bus fans events out to per-channel subscriber lists.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]chan any
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]chan any)}
}

// Publish sends the event to every subscriber of the channel. Full
// subscriber buffers are skipped.
func (b *Bus) Publish(channel string, ev any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[channel] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a subscriber on the channel and returns its receive
// channel.
func (b *Bus) Subscribe(channel string) <-chan any {
	ch := make(chan any, 16)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs[channel] = append(b.subs[channel], ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber from the channel and closes it.
func (b *Bus) Unsubscribe(channel string, sub <-chan any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chans := b.subs[channel]
	for i, ch := range chans {
		if ch == sub {
			b.subs[channel] = append(chans[:i], chans[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes every subscriber channel and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.subs = nil
	b.mu.Unlock()
}
