package broadcast

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const DefaultCapabilityName = "broadcast"

// Config es la sección del módulo en la config del host. Events nil significa
// "sin configurar" y usa DefaultEvents; una lista vacía no reenvía nada.
type Config struct {
	Events         []string `yaml:"events"`
	CapabilityName string   `yaml:"capability_name"`
}

// DecodeConfig lee la config libre que el host le pasa al módulo
func DecodeConfig(raw map[string]any) (Config, error) {
	var c Config
	if len(raw) > 0 {
		var n yaml.Node
		if err := n.Encode(raw); err != nil {
			return Config{}, fmt.Errorf("encode module config: %w", err)
		}
		if err := n.Decode(&c); err != nil {
			return Config{}, fmt.Errorf("decode module config: %w", err)
		}
		if v, ok := raw["events"]; ok && v != nil && c.Events == nil {
			c.Events = []string{}
		}
	}
	return c.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if c.Events == nil {
		c.Events = append([]string(nil), DefaultEvents...)
	}
	if c.CapabilityName == "" {
		c.CapabilityName = DefaultCapabilityName
	}
	return c
}
