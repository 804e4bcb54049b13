// Package config loads the service configuration from YAML or JSON with
// environment overrides (D_ prefix, __ as the section separator).
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

	"github.com/fleetops/dispatchd/core/metrics"
	"github.com/fleetops/dispatchd/core/planning"
	"github.com/fleetops/dispatchd/core/routes"
	"github.com/fleetops/dispatchd/infra/mqtt"
)

// Config is the full service configuration.
type Config struct {
	HTTP     HTTPConfig             `json:"http"`
	Store    StoreConfig            `json:"store"`
	Routes   routes.Config          `json:"routes"`
	Planning planning.TriggerConfig `json:"planning"`
	Journal  JournalConfig          `json:"journal"`
	MQTT     MQTTConfig             `json:"mqtt"`
	Metrics  metrics.Config         `json:"metrics"`
	Logging  LoggingConfig          `json:"logging"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults fills unset fields.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `json:"backend"`
	// DSN is the Postgres connection string, required for the postgres
	// backend.
	DSN string `json:"dsn"`
}

// SetDefaults fills unset fields.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks backend consistency.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("store: postgres backend requires a dsn")
		}
		return nil
	default:
		return fmt.Errorf("store: unknown backend %q", c.Backend)
	}
}

// JournalConfig configures the planning event journal.
type JournalConfig struct {
	// Path of the JSONL file. Empty disables the journal.
	Path string `json:"path"`
}

// MQTTConfig wraps the broker settings; an empty broker disables publishing.
type MQTTConfig struct {
	Enabled bool        `json:"enabled"`
	Client  mqtt.Config `json:"client"`
}

// Validate checks broker consistency.
func (c MQTTConfig) Validate() error {
	if c.Enabled && c.Client.Broker == "" {
		return fmt.Errorf("mqtt: enabled but no broker configured")
	}
	return nil
}

// Load reads, overrides and validates the configuration file.
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
	// Optional environment overrides, e.g. D_HTTP__ADDR=:9090.
	if err := k.Load(env.Provider("D_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "d_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.HTTP.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.Routes.SetDefaults()
	cfg.Planning.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
