package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// anyIndex leaves an axis unconstrained (lattice.Any).
const anyIndex = -1

// RunnableConfig describes an external command attached to the acquisition.
// Axis indices left out match every index of that axis.
type RunnableConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`

	Frame    *int `yaml:"frame" json:"frame"`
	Position *int `yaml:"position" json:"position"`
	Channel  *int `yaml:"channel" json:"channel"`
	Slice    *int `yaml:"slice" json:"slice"`

	// Timeout bounds one execution, e.g. "10s". Empty means no limit.
	Timeout string `yaml:"timeout" json:"timeout"`
}

// Indices returns the runnable's frame, position, channel and slice
// constraints, -1 for unconstrained axes.
func (c RunnableConfig) Indices() (frame, position, channel, slice int) {
	return index(c.Frame), index(c.Position), index(c.Channel), index(c.Slice)
}

func index(p *int) int {
	if p == nil {
		return anyIndex
	}
	return *p
}

// TimeoutDuration parses Timeout.
func (c RunnableConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Timeout)
}

// ConfigFile represents the structure of runnables.yaml
type ConfigFile struct {
	Runnables []RunnableConfig `yaml:"runnables" json:"runnables"`
}

// LoadRunnables reads a configuration file (YAML or JSON) and returns the
// runnables in file order.
func LoadRunnables(path string) ([]RunnableConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read runnables config: %w", err)
	}

	var cfg ConfigFile
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	seen := make(map[string]bool)
	for i, r := range cfg.Runnables {
		switch {
		case r.Name == "":
			return nil, fmt.Errorf("runnables[%d]: name is required", i)
		case r.Command == "":
			return nil, fmt.Errorf("runnable %q: command is required", r.Name)
		case seen[r.Name]:
			return nil, fmt.Errorf("runnable %q: duplicate name", r.Name)
		}
		seen[r.Name] = true

		if d, err := r.TimeoutDuration(); err != nil || d < 0 {
			return nil, fmt.Errorf("runnable %q: invalid timeout %q", r.Name, r.Timeout)
		}
		f, p, c, s := r.Indices()
		if f < anyIndex || p < anyIndex || c < anyIndex || s < anyIndex {
			return nil, fmt.Errorf("runnable %q: indices must be -1 or greater", r.Name)
		}
	}

	return cfg.Runnables, nil
}
