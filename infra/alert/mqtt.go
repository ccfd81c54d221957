package alert

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/logger"
)

// MQTTConfig defines the connection parameters for the MQTT broadcaster.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

// SetDefaults applies defaults for optional fields.
func (c *MQTTConfig) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "dispatch-" + uuid.NewString()[:8]
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "dispatch/alerts"
	}
}

// Validate checks mandatory fields.
func (c MQTTConfig) Validate() error {
	if c.Enabled && c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTBroadcaster publishes alert events as JSON to an MQTT broker. Channel
// names map onto topics under the configured prefix, colons replaced with
// slashes ("case:42" -> "<prefix>/case/42"). Publishes are fire-and-forget;
// broker errors are logged, never surfaced.
type MQTTBroadcaster struct {
	cli    pahoClient
	prefix string
	qos    byte
	log    logger.Logger
}

// NewMQTTBroadcaster connects to the broker.
func NewMQTTBroadcaster(cfg MQTTConfig, log logger.Logger) (*MQTTBroadcaster, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("MQTT connection lost: %v", err)
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTBroadcaster{cli: cli, prefix: cfg.TopicPrefix, qos: cfg.QoS, log: log}, nil
}

// Publish implements alert.Broadcaster.
func (b *MQTTBroadcaster) Publish(channel string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Errorf("alert marshal on %s: %v", channel, err)
		return
	}
	topic := b.prefix + "/" + strings.ReplaceAll(channel, ":", "/")
	token := b.cli.Publish(topic, b.qos, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			b.log.Errorf("alert publish on %s: %v", topic, token.Error())
		}
	}()
}

// Close disconnects from the broker.
func (b *MQTTBroadcaster) Close() error {
	b.cli.Disconnect(250)
	return nil
}
