// Package config loads the static model registry of the client from YAML.
//
//	data_path: result
//	models:
//	  - name: widget
//	    plural: widgets
//	    references:
//	      parts: part
//	    before_queue_omit: [label]
//	    modifiers:
//	      after_get: |
//	        function (e) { e.label = e.name.toUpperCase(); return e }
//	  - name: part
//
// Files ending in .json or .jsonc are read as JSON, comments and trailing
// commas allowed.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/iudanet/gophcache/internal/client/modifier"
	"github.com/iudanet/gophcache/internal/models"
)

// Config is the top-level client configuration.
type Config struct {
	// DataPath locates the payload inside response bodies, relative to the
	// body itself. Empty means the body is the payload.
	DataPath string `yaml:"data_path" json:"data_path"`

	Models []ModelConfig `yaml:"models" json:"models"`
}

// ModelConfig declares one model.
type ModelConfig struct {
	// References maps a property to the name of the model it holds.
	References map[string]string `yaml:"references" json:"references"`

	Name   string `yaml:"name" json:"name"`
	Plural string `yaml:"plural" json:"plural"`

	// BeforeQueueOmit lists properties stripped from origin snapshots.
	BeforeQueueOmit []string `yaml:"before_queue_omit" json:"before_queue_omit"`

	// Initial entities of a fresh slice.
	Initial []map[string]any `yaml:"initial" json:"initial"`

	Modifiers ModifierConfig `yaml:"modifiers" json:"modifiers"`
}

// ModifierConfig holds JavaScript function expressions for the lifecycle hooks.
type ModifierConfig struct {
	AfterGet   string `yaml:"after_get" json:"after_get"`
	BeforeSave string `yaml:"before_save" json:"before_save"`
	AfterQueue string `yaml:"after_queue" json:"after_queue"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return ParseJSON(data)
	default:
		return Parse(data)
	}
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseJSON decodes and validates a JSON configuration document.
// Comments and trailing commas are stripped first.
func ParseJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}
	names := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.Name != "" {
			names[m.Name] = true
		}
	}
	for _, m := range c.Models {
		for prop, target := range m.References {
			if !names[target] {
				return fmt.Errorf("model %q: reference %q targets unknown model %q", m.Name, prop, target)
			}
		}
		for i, e := range m.Initial {
			if models.Entity(e).ID() == "" {
				return fmt.Errorf("model %q: initial entity %d has no id", m.Name, i)
			}
		}
	}
	return nil
}

// Registry builds the model registry.
func (c *Config) Registry() (*models.Registry, error) {
	descriptors := make([]*models.Model, 0, len(c.Models))
	for _, mc := range c.Models {
		m := &models.Model{
			Name:       mc.Name,
			Plural:     mc.Plural,
			References: mc.References,
		}
		for _, e := range mc.Initial {
			m.Initial = append(m.Initial, models.Entity(e))
		}
		if len(mc.BeforeQueueOmit) > 0 {
			m.BeforeQueue = omit(mc.BeforeQueueOmit)
		}
		descriptors = append(descriptors, m)
	}
	return models.NewRegistry(descriptors...)
}

// Modifiers compiles the modifier scripts.
func (c *Config) Modifiers() (*modifier.Registry, error) {
	r := modifier.NewRegistry()
	for _, mc := range c.Models {
		var (
			hooks   modifier.Hooks
			err     error
			hasHook bool
		)
		if src := mc.Modifiers.AfterGet; src != "" {
			if hooks.AfterGet, err = modifier.Script(src); err != nil {
				return nil, fmt.Errorf("model %q after_get: %w", mc.Name, err)
			}
			hasHook = true
		}
		if src := mc.Modifiers.BeforeSave; src != "" {
			if hooks.BeforeSave, err = modifier.Script(src); err != nil {
				return nil, fmt.Errorf("model %q before_save: %w", mc.Name, err)
			}
			hasHook = true
		}
		if src := mc.Modifiers.AfterQueue; src != "" {
			if hooks.AfterQueue, err = modifier.ListScript(src); err != nil {
				return nil, fmt.Errorf("model %q after_queue: %w", mc.Name, err)
			}
			hasHook = true
		}
		if hasHook {
			r.Register(mc.Name, hooks)
		}
	}
	return r, nil
}

func omit(fields []string) func(models.Entity) models.Entity {
	return func(e models.Entity) models.Entity {
		for _, f := range fields {
			delete(e, f)
		}
		return e
	}
}
