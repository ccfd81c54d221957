package alert

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/Sara-Samara/HealthAidProj-sub002/infra/logger"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeMQTTClient struct {
	mu        sync.Mutex
	published map[string][][]byte
	connected bool
}

func (c *fakeMQTTClient) IsConnected() bool { return c.connected }
func (c *fakeMQTTClient) Connect() paho.Token {
	c.connected = true
	return &fakeToken{}
}
func (c *fakeMQTTClient) Disconnect(uint) { c.connected = false }
func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.published == nil {
		c.published = make(map[string][][]byte)
	}
	c.published[topic] = append(c.published[topic], payload.([]byte))
	return &fakeToken{}
}

func (c *fakeMQTTClient) payloads(topic string) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published[topic]
}

func withFakeClient(t *testing.T) *fakeMQTTClient {
	t.Helper()
	fake := &fakeMQTTClient{}
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return fake }
	t.Cleanup(func() { newMQTTClient = orig })
	return fake
}

func TestMQTTConfigDefaults(t *testing.T) {
	var cfg MQTTConfig
	cfg.SetDefaults()
	require.NotEmpty(t, cfg.ClientID)
	require.Equal(t, "dispatch/alerts", cfg.TopicPrefix)
	require.NoError(t, cfg.Validate())

	cfg.Enabled = true
	require.Error(t, cfg.Validate(), "enabled without a broker must fail")
}

func TestMQTTBroadcasterTopicMapping(t *testing.T) {
	fake := withFakeClient(t)

	cfg := MQTTConfig{Broker: "tcp://localhost:1883", TopicPrefix: "dispatch/alerts"}
	cfg.SetDefaults()
	b, err := NewMQTTBroadcaster(cfg, logger.NopLogger{})
	require.NoError(t, err)
	defer b.Close()

	b.Publish("case:42", map[string]string{"status": "assigned"})

	payloads := fake.payloads("dispatch/alerts/case/42")
	require.Len(t, payloads, 1, "colon channel must map to a slash topic")

	var got map[string]string
	require.NoError(t, json.Unmarshal(payloads[0], &got))
	require.Equal(t, "assigned", got["status"])
}

func TestMQTTBroadcasterSupervisorsTopic(t *testing.T) {
	fake := withFakeClient(t)

	cfg := MQTTConfig{Broker: "tcp://localhost:1883"}
	cfg.SetDefaults()
	b, err := NewMQTTBroadcaster(cfg, logger.NopLogger{})
	require.NoError(t, err)
	defer b.Close()

	b.Publish("supervisors", map[string]int{"failures": 3})
	require.Len(t, fake.payloads("dispatch/alerts/supervisors"), 1)

	require.NoError(t, b.Close())
	require.False(t, fake.IsConnected(), "close must disconnect")
}

func TestMQTTBroadcasterUnmarshalableEventDropped(t *testing.T) {
	fake := withFakeClient(t)

	cfg := MQTTConfig{Broker: "tcp://localhost:1883"}
	cfg.SetDefaults()
	b, err := NewMQTTBroadcaster(cfg, logger.NopLogger{})
	require.NoError(t, err)
	defer b.Close()

	b.Publish("case:1", make(chan int)) // not JSON-serializable
	require.Empty(t, fake.payloads("dispatch/alerts/case/1"), "bad payloads must be dropped, not published")
}
