package importer

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed mapping/default.yaml
var defaultMapping []byte

// wildcardSheet configures every sheet without an entry of its own
const wildcardSheet = "*"

// MappingConfig represents the YAML mapping configuration
type MappingConfig struct {
	Version  int                    `yaml:"version"`
	Defaults map[string]string      `yaml:"defaults"`
	Sheets   map[string]SheetConfig `yaml:"sheets"`
}

// SheetConfig maps the header row of one sheet onto record fields
type SheetConfig struct {
	NaturalKey []string                `yaml:"natural_key"`
	Aliases    map[string][]string     `yaml:"aliases"`
	Columns    map[string]ColumnConfig `yaml:"columns"`
}

// ColumnConfig names the record field a column feeds. A trailing '?' on
// Type marks the column optional.
type ColumnConfig struct {
	Field string `yaml:"field"`
	Type  string `yaml:"type"`
}

var recordFields = map[string]bool{
	"email":       true,
	"type":        true,
	"location":    true,
	"status":      true,
	"description": true,
	"open_date":   true,
}

// DefaultMapping parses the built-in mapping
func DefaultMapping() (*MappingConfig, error) {
	m, err := ParseMapping(defaultMapping)
	if err != nil {
		return nil, fmt.Errorf("built-in mapping: %w", err)
	}
	return m, nil
}

// LoadMapping reads a mapping file. An empty path yields the built-in mapping.
func LoadMapping(path string) (*MappingConfig, error) {
	if path == "" {
		return DefaultMapping()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	return ParseMapping(data)
}

// ParseMapping decodes and validates a YAML mapping
func ParseMapping(data []byte) (*MappingConfig, error) {
	var m MappingConfig
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if len(m.Sheets) == 0 {
		return nil, fmt.Errorf("mapping defines no sheets")
	}
	for name, sc := range m.Sheets {
		for header, col := range sc.Columns {
			if !recordFields[col.Field] {
				return nil, fmt.Errorf("sheet %q column %q: unknown field %q", name, header, col.Field)
			}
		}
		for _, k := range sc.NaturalKey {
			if !recordFields[k] || k == "open_date" {
				return nil, fmt.Errorf("sheet %q: natural key field %q not allowed", name, k)
			}
		}
	}
	return &m, nil
}

// sheet returns the config for a sheet name, falling back to the wildcard
func (m *MappingConfig) sheet(name string) (SheetConfig, bool) {
	if sc, ok := m.Sheets[name]; ok {
		return sc, true
	}
	sc, ok := m.Sheets[wildcardSheet]
	return sc, ok
}

// resolveHeader maps a header cell to its column key, directly or via an alias
func (sc SheetConfig) resolveHeader(header string) (string, bool) {
	h := strings.ToUpper(strings.TrimSpace(header))
	if h == "" {
		return "", false
	}
	for key := range sc.Columns {
		if strings.ToUpper(key) == h {
			return key, true
		}
	}
	for key, aliases := range sc.Aliases {
		for _, alias := range aliases {
			if strings.ToUpper(alias) != h {
				continue
			}
			for col := range sc.Columns {
				if strings.ToUpper(col) == strings.ToUpper(key) {
					return col, true
				}
			}
		}
	}
	return "", false
}
