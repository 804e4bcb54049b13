package config

import "fmt"

// LoggingConfig defines application log settings.
type LoggingConfig struct {
	// Level is the minimum level emitted: "debug", "info", "warn" or
	// "error".
	Level string `json:"level"`
	// Components overrides the level per component, e.g.
	// {"planning": "debug", "api": "warn"}.
	Components map[string]string `json:"components"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	if err := validateLevel(c.Level); err != nil {
		return err
	}
	for component, level := range c.Components {
		if err := validateLevel(level); err != nil {
			return fmt.Errorf("component %s: %w", component, err)
		}
	}
	return nil
}

func validateLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown log level %s", level)
	}
}
