// Package alert defines the narrow publish interface the dispatch core uses
// to fan out lifecycle events. Implementations (in-process bus, MQTT,
// websocket hub) live under infra/alert; the coordinator never waits on
// delivery.
package alert

// ChannelSupervisors receives escalation events.
const ChannelSupervisors = "supervisors"

// CaseChannel names the per-case channel.
func CaseChannel(id string) string { return "case:" + id }

// ResponderChannel names the per-responder channel.
func ResponderChannel(id string) string { return "responder:" + id }

// RegionChannel names the per-region channel.
func RegionChannel(name string) string { return "region:" + name }

// Broadcaster publishes events to named channels. Publish must never block;
// delivery is best effort and failures are swallowed and logged.
type Broadcaster interface {
	Publish(channel string, event any)
	Close() error
}

// NopBroadcaster discards every event.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(string, any) {}
func (NopBroadcaster) Close() error        { return nil }
