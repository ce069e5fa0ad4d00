package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/stepwise/pkg/schema"
	"gopkg.in/yaml.v3"
)

// Kind is the tool kind served by this package.
const Kind = "process"

// ProcessConfig represents the configuration for an external tool execution.
type ProcessConfig struct {
	Name        string                          `yaml:"name" json:"name" mapstructure:"name"`
	Description string                          `yaml:"description" json:"description" mapstructure:"description"`
	Command     string                          `yaml:"command" json:"command" mapstructure:"command"`
	Args        []string                        `yaml:"args" json:"args" mapstructure:"args"`
	Environment map[string]string               `yaml:"env" json:"env" mapstructure:"env"`
	Dir         string                          `yaml:"dir" json:"dir" mapstructure:"dir"`
	Timeout     string                          `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	Parameters  map[string]schema.ParameterSpec `yaml:"parameters" json:"parameters" mapstructure:"-"`
}

func (c ProcessConfig) validate() error {
	if c.Command == "" {
		return fmt.Errorf("process tool %q: command is required", c.Name)
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return fmt.Errorf("process tool %q: invalid timeout %q: %w", c.Name, c.Timeout, err)
		}
	}
	return nil
}

// ConfigFile represents the structure of tools.yaml
type ConfigFile struct {
	Tools []ProcessConfig `yaml:"tools" json:"tools"`
}

// LoadTools reads a configuration file (YAML or JSON) and returns a map of tool names to configs.
// A missing file yields an empty map.
func LoadTools(path string) (map[string]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ProcessConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read tools config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	toolMap := make(map[string]ProcessConfig, len(cfg.Tools))
	for _, tool := range cfg.Tools {
		if tool.Name == "" {
			continue
		}
		if err := tool.validate(); err != nil {
			return nil, err
		}
		toolMap[tool.Name] = tool
	}
	return toolMap, nil
}
