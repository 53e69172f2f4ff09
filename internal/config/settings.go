// Package config loads acquisition settings files and the service
// configuration of the lattice binary.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// readDocument parses a YAML or JSON file (by extension, YAML by default)
// into a generic map.
func readDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	raw := map[string]any{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return raw, nil
}

// decode maps a generic document onto out using the yaml field names.
// Strings are converted to text-unmarshalable types (OrderMode) and
// durations; scalar types are coerced; unknown keys are rejected.
func decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		Result: out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// LoadSettings reads acquisition settings from a YAML or JSON file and
// validates them. acq_order_mode accepts the mode name or its ordinal.
func LoadSettings(path string) (*domain.Settings, error) {
	raw, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	var s domain.Settings
	if err := decode(raw, &s); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return &s, nil
}
