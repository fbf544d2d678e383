package brep

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the service configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	// Validate required fields
	if config.MQTT.Broker == "" {
		return nil, fmt.Errorf("mqtt.broker is required")
	}
	if len(config.Shapes) == 0 {
		return nil, fmt.Errorf("at least one shape must be defined")
	}

	// Validate shape configs
	seen := make(map[string]bool, len(config.Shapes))
	for i, sc := range config.Shapes {
		if sc.ID == "" {
			return nil, fmt.Errorf("shapes[%d].id is required", i)
		}
		if sc.File == "" && sc.URL == "" {
			return nil, fmt.Errorf("shapes[%d] (%s): file or url is required", i, sc.ID)
		}
		if seen[sc.ID] {
			return nil, fmt.Errorf("shapes[%d]: duplicate id %s", i, sc.ID)
		}
		seen[sc.ID] = true
	}

	applyDefaults(&config)
	return &config, nil
}

// applyDefaults fills in optional settings left empty in the file.
func applyDefaults(config *Config) {
	if config.MQTT.TopicPrefix == "" {
		config.MQTT.TopicPrefix = "symscan"
	}
	if config.MQTT.ClientID == "" {
		config.MQTT.ClientID = "symscan-service"
	}
	if config.DataDir == "" {
		config.DataDir = "data"
	}
	if config.HTTPAddr == "" {
		config.HTTPAddr = ":8080"
	}
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
