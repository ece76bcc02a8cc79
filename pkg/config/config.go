// Package config loads the YAML extension manifest that describes which
// contracts each extension fulfils, how big its connection pool is, and
// what resource budget the router enforces against it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ExtensionConfig describes one extension entry in the manifest.
type ExtensionConfig struct {
	Name      string   `yaml:"name"`
	Contracts []string `yaml:"contracts"`
	PoolSize  int      `yaml:"pool_size"`
	Timeout   Duration `yaml:"timeout"`
	Address   string   `yaml:"address"`
}

// Duration wraps time.Duration with YAML (un)marshaling from strings like
// "5s", since gopkg.in/yaml.v3 has no native duration support.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) AsDuration() time.Duration { return time.Duration(d) }

// ResourceCaps declares the per-resource budget the router enforces across
// every registered method (spec §4.2's "weighted resource claim").
type ResourceCaps map[string]int

// Manifest is the top-level shape of the extension manifest file.
type Manifest struct {
	Listen struct {
		Address string `yaml:"address"`
	} `yaml:"listen"`
	ResourceCaps ResourceCaps      `yaml:"resource_caps"`
	Extensions   []ExtensionConfig `yaml:"extensions"`
	Advertise    struct {
		Enabled     bool   `yaml:"enabled"`
		ServiceName string `yaml:"service_name"`
		ServiceType string `yaml:"service_type"`
	} `yaml:"advertise"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Bridge struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"bridge"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &m, nil
}
