package environment

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"
	"github.com/magiconair/properties"
)

// Format identifies the syntax of an environment file.
type Format string

const (
	// FormatAuto selects the format from the file extension.
	FormatAuto Format = ""
	// FormatProperties is the flat `key = value` syntax.
	FormatProperties Format = "properties"
	// FormatYAML is YAML with nested maps mapped to dotted keys.
	FormatYAML Format = "yaml"
	// FormatTOML is TOML with tables mapped to dotted keys.
	FormatTOML Format = "toml"
)

// DetectFormat maps a file extension to a Format. Files without an extension
// are read as properties.
func DetectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case "", ".properties", ".conf", ".cfg":
		return FormatProperties, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func parserFor(format Format) (koanf.Parser, error) {
	switch format {
	case FormatProperties:
		return propertiesParser{}, nil
	case FormatYAML:
		return yaml.Parser(), nil
	case FormatTOML:
		return tomlParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}
}

// propertiesParser adapts magiconair/properties to koanf. Keys are unflattened
// on the dot so that lookups behave the same as for nested formats. ${...}
// is kept as literal text, as in Java property files.
type propertiesParser struct{}

func (propertiesParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(b)
	if err != nil {
		return nil, fmt.Errorf("parse properties: %w", err)
	}

	flat := make(map[string]interface{}, p.Len())
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		flat[key] = value
	}
	return maps.Unflatten(flat, delim), nil
}

func (propertiesParser) Marshal(m map[string]interface{}) ([]byte, error) {
	flat, _ := maps.Flatten(m, nil, delim)

	p := properties.NewProperties()
	p.DisableExpansion = true
	for key, value := range flat {
		if _, _, err := p.Set(key, fmt.Sprint(value)); err != nil {
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
	}

	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return nil, fmt.Errorf("write properties: %w", err)
	}
	return buf.Bytes(), nil
}

type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("encode TOML: %w", err)
	}
	return buf.Bytes(), nil
}
