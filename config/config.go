// Package config loads the service configuration from a YAML or JSON file
// with K_-prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/pvopt/core/factory"
	"github.com/kilianp07/pvopt/core/ingest"
	"github.com/kilianp07/pvopt/core/journal"
	"github.com/kilianp07/pvopt/core/metrics"
	"github.com/kilianp07/pvopt/core/optimizer"
	"github.com/kilianp07/pvopt/infra/mqtt"
)

type Config struct {
	Optimizer optimizer.Config     `json:"optimizer"`
	Solver    factory.ModuleConfig `json:"solver"`
	Worker    ingest.Config        `json:"worker"`
	MQTT      mqtt.Config          `json:"mqtt"`
	Metrics   metrics.Config       `json:"metrics"`
	Journal   journal.Config       `json:"journal"`
	Sentry    SentryConfig         `json:"sentry"`
	HTTP      HTTPConfig           `json:"http"`
	Log       LogConfig            `json:"log"`
}

// Load reads path, applies environment overrides such as
// K_OPTIMIZER__MAX_TIMEOUT_SECONDS=30, then defaults and validation.
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
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration built from defaults only.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults fills zero values of every section.
func (c *Config) SetDefaults() {
	c.Optimizer.SetDefaults()
	if c.Solver.Type == "" {
		c.Solver.Type = "milp"
	}
	c.Worker.SetDefaults()
	if c.MQTT.Broker != "" {
		c.MQTT.SetDefaults()
	}
	c.Journal.SetDefaults()
	c.Log.SetDefaults()
}

// Validate checks every section. The MQTT section is only checked when a
// broker is configured.
func (c Config) Validate() error {
	var errs []error
	if err := c.Optimizer.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Worker.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.MQTT.Broker != "" {
		if err := c.MQTT.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Journal.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
