// Package alert provides broadcaster implementations behind the narrow
// publish interface the coordinator uses: an in-process bus, an MQTT
// fan-out, a websocket hub and a multi-transport combinator.
package alert

import (
	"sync"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/logger"
	"github.com/Sara-Samara/HealthAidProj-sub002/internal/eventbus"
)

type envelope struct {
	channel string
	event   any
}

// BusBroadcaster delivers events through an in-process event bus. Publish
// enqueues onto a single delivery goroutine, so publish order is preserved
// per channel and the coordinator never blocks on a slow subscriber.
type BusBroadcaster struct {
	bus   *eventbus.Bus
	queue chan envelope
	done  chan struct{}
	once  sync.Once
	log   logger.Logger

	// mu guards closed against the queue close, so a straggling publisher
	// (e.g. a dispatch timer firing during shutdown) is refused instead of
	// panicking on the closed channel.
	mu     sync.RWMutex
	closed bool
}

// NewBusBroadcaster creates a broadcaster with the given queue depth.
func NewBusBroadcaster(queueSize int, log logger.Logger) *BusBroadcaster {
	if queueSize <= 0 {
		queueSize = 256
	}
	b := &BusBroadcaster{
		bus:   eventbus.New(),
		queue: make(chan envelope, queueSize),
		done:  make(chan struct{}),
		log:   log,
	}
	go b.deliver()
	return b
}

func (b *BusBroadcaster) deliver() {
	defer close(b.done)
	for env := range b.queue {
		b.bus.Publish(env.channel, env.event)
	}
}

// Publish queues the event for delivery. A full queue drops the event with
// a warning rather than stalling the caller; publishes after Close are
// dropped silently.
func (b *BusBroadcaster) Publish(channel string, event any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- envelope{channel: channel, event: event}:
	default:
		b.log.Warnf("alert queue full, dropping event on %s", channel)
	}
}

// Subscribe attaches to a channel.
func (b *BusBroadcaster) Subscribe(channel string) <-chan any {
	return b.bus.Subscribe(channel)
}

// Unsubscribe detaches a subscriber.
func (b *BusBroadcaster) Unsubscribe(channel string, sub <-chan any) {
	b.bus.Unsubscribe(channel, sub)
}

// Close drains the queue and closes all subscriber channels. In-flight
// publishes complete first; later ones are dropped.
func (b *BusBroadcaster) Close() error {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.queue)
		<-b.done
		b.bus.Close()
	})
	return nil
}
