package alert

import coreal "github.com/Sara-Samara/HealthAidProj-sub002/core/alert"

// MultiBroadcaster fans every publish out to several transports.
type MultiBroadcaster struct {
	targets []coreal.Broadcaster
}

// NewMultiBroadcaster combines the given broadcasters.
func NewMultiBroadcaster(targets ...coreal.Broadcaster) *MultiBroadcaster {
	return &MultiBroadcaster{targets: targets}
}

// Publish forwards to every transport.
func (m *MultiBroadcaster) Publish(channel string, event any) {
	for _, t := range m.targets {
		t.Publish(channel, event)
	}
}

// Close closes every transport, returning the first error.
func (m *MultiBroadcaster) Close() error {
	var first error
	for _, t := range m.targets {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
