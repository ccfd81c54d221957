package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/dispatch"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/match"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/metrics"
	"github.com/Sara-Samara/HealthAidProj-sub002/infra/alert"
)

// Config is the service configuration.
type Config struct {
	Dispatch dispatch.Config  `json:"dispatch"`
	Match    match.Config     `json:"match"`
	Metrics  metrics.Config   `json:"metrics"`
	MQTT     alert.MQTTConfig `json:"mqtt"`
	Alert    AlertConfig      `json:"alert"`
	Audit    AuditConfig      `json:"audit"`
}

// AlertConfig sizes the in-process alert queue and websocket endpoint.
type AlertConfig struct {
	QueueSize int    `json:"queue_size"`
	WSEnabled bool   `json:"ws_enabled"`
	WSPort    string `json:"ws_port"`
}

// SetDefaults applies sane defaults.
func (c *AlertConfig) SetDefaults() {
	if c.QueueSize == 0 {
		c.QueueSize = 256
	}
	if c.WSPort == "" {
		c.WSPort = "8081"
	}
}

// AuditConfig selects the audit persistence backend.
type AuditConfig struct {
	// Backend is "memory" or "jsonl".
	Backend string `json:"backend"`
	// Path is the JSONL file location.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *AuditConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Path == "" {
		c.Path = "audit.log"
	}
}

// Validate checks mandatory fields.
func (c AuditConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "jsonl" {
		return fmt.Errorf("unknown audit backend %s", c.Backend)
	}
	return nil
}

// Load reads the configuration file, applies environment overrides, defaults
// and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("HA_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ha_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Dispatch.SetDefaults()
	cfg.Match.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Alert.SetDefaults()
	cfg.Audit.SetDefaults()
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Match.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Audit.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
