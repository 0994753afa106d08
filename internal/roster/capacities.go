package roster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/allotment/internal/capacity"
	"github.com/mmr-tortoise/allotment/internal/model"
)

// CapacityConfig is the admin-supplied capacity file:
//
//	default_capacity: 0
//	capacities:
//	  Math: 12
//	  Art: 8
//	aliases:
//	  computer: ComSci
type CapacityConfig struct {
	// Capacities maps an option (any spelling that resolves to it) to its
	// number of places.
	Capacities map[string]int `yaml:"capacities" json:"capacities"`

	// DefaultCapacity applies to options not listed in Capacities. When
	// unset such options get 0 places.
	DefaultCapacity *int `yaml:"default_capacity,omitempty" json:"default_capacity,omitempty"`

	// Aliases maps a case-insensitive keyword to a short option name; any
	// preference containing the keyword is replaced by the short name.
	Aliases map[string]string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Validate checks the configuration values independent of any import.
func (c *CapacityConfig) Validate() error {
	if c.DefaultCapacity != nil && *c.DefaultCapacity < 0 {
		return fmt.Errorf("default_capacity: %w (got %d)", capacity.ErrNegativeCapacity, *c.DefaultCapacity)
	}
	for _, id := range sortedKeys(c.Capacities) {
		if v := c.Capacities[id]; v < 0 {
			return fmt.Errorf("option %q: %w (got %d)", id, capacity.ErrNegativeCapacity, v)
		}
	}
	for _, keyword := range sortedKeys(c.Aliases) {
		if strings.TrimSpace(keyword) == "" || strings.TrimSpace(c.Aliases[keyword]) == "" {
			return fmt.Errorf("aliases: keyword and short name must not be empty")
		}
	}
	return nil
}

// Resolve maps the configuration onto the options of an imported table and
// returns one capacity per registered option, keyed by its surviving
// spelling. Keys are matched exactly, then through merged aliases, then by
// trim/case-fold key. A key that matches no option is an
// *model.UnknownOptionError. The violation marker is never given places.
func (c *CapacityConfig) Resolve(table *capacity.Table) (map[string]int, error) {
	byKey := make(map[string]string, table.Len())
	for _, o := range table.Options() {
		if o.ID == model.ViolationOption {
			continue
		}
		byKey[capacity.NormalizeKey(o.ID)] = o.ID
	}

	out := make(map[string]int, table.Len())
	for _, key := range sortedKeys(c.Capacities) {
		id, ok := table.Resolve(key)
		if !ok {
			id, ok = byKey[capacity.NormalizeKey(key)]
		}
		if !ok {
			return nil, &model.UnknownOptionError{Option: key}
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("option %q is configured more than once (as %q)", id, key)
		}
		out[id] = c.Capacities[key]
	}

	def := 0
	if c.DefaultCapacity != nil {
		def = *c.DefaultCapacity
	}
	for _, o := range table.Options() {
		if _, set := out[o.ID]; !set {
			out[o.ID] = def
		}
	}
	if _, ok := out[model.ViolationOption]; ok {
		out[model.ViolationOption] = 0
	}
	return out, nil
}

// ParseCapacityYAML decodes a YAML capacity configuration.
func ParseCapacityYAML(data []byte) (*CapacityConfig, error) {
	var cfg CapacityConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse capacity config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCapacityJSONC decodes a JSON capacity configuration that may carry
// comments and trailing commas.
func ParseCapacityJSONC(data []byte) (*CapacityConfig, error) {
	var cfg CapacityConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse capacity config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadCapacityConfig reads a capacity configuration, choosing the decoder by
// file extension: .yaml/.yml or .json/.jsonc.
func LoadCapacityConfig(path string) (*CapacityConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(model.ExitCapacityConfig,
				fmt.Sprintf("capacity config not found: %s", path), err)
		}
		return nil, fmt.Errorf("failed to read capacity config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseCapacityYAML(data)
	case ".json", ".jsonc":
		return ParseCapacityJSONC(data)
	}
	return nil, fmt.Errorf("unsupported capacity config extension %q (use .yaml or .json)", filepath.Ext(path))
}

// CapacityTemplate renders a YAML capacity configuration listing every
// option of the table in registration order with the given capacity, ready
// for an admin to fill in. The violation marker is left out.
func CapacityTemplate(table *capacity.Table, places int) ([]byte, error) {
	caps := &yaml.Node{Kind: yaml.MappingNode}
	for _, o := range table.Options() {
		if o.ID == model.ViolationOption {
			continue
		}
		caps.Content = append(caps.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: o.ID},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(places)},
		)
	}
	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "default_capacity"},
		{Kind: yaml.ScalarNode, Tag: "!!int", Value: "0"},
		{Kind: yaml.ScalarNode, Value: "capacities"},
		caps,
	}}

	var buf bytes.Buffer
	buf.WriteString("# Capacity configuration generated by allotment.\n")
	buf.WriteString("# Set the number of places for every option, then run `allotment allocate`.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to render capacity template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render capacity template: %w", err)
	}
	return buf.Bytes(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
