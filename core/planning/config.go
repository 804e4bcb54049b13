package planning

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TriggerConfig tunes the automatic planning trigger.
type TriggerConfig struct {
	Enabled         bool `json:"enabled" yaml:"enabled"`
	Threshold       int  `json:"threshold" yaml:"threshold"`
	IntervalSeconds int  `json:"interval_seconds" yaml:"interval_seconds"`
}

// SetDefaults fills unset fields.
func (c *TriggerConfig) SetDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = 10
	}
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 60
	}
}

// Interval returns the polling period.
func (c TriggerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LoadTriggerConfig loads a TriggerConfig from a JSON or YAML file.
func LoadTriggerConfig(path string) (TriggerConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return TriggerConfig{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	var cfg TriggerConfig
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	default:
		return TriggerConfig{}, fmt.Errorf("unsupported config format: %s", ext)
	}
	return cfg, err
}

// DecodeTriggerConfig reads from r to decode a TriggerConfig.
func DecodeTriggerConfig(r io.Reader, format string) (TriggerConfig, error) {
	var cfg TriggerConfig
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported format: %s", format)
	}
	return cfg, nil
}
