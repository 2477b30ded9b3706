package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Section maps entry names to raw configuration entries.
//
// An entry may be written as a string holding JSON or as an inline mapping;
// both decode to the JSON text of the entry so the factory sees one format.
type Section map[string]string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Section) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: section must be a mapping of name to entry", node.Line)
	}

	out := make(Section, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: entry name must be a scalar", key.Line)
		}

		switch {
		case value.Kind == yaml.ScalarNode && value.Tag == "!!null":
			out[key.Value] = ""
		case value.Kind == yaml.ScalarNode:
			out[key.Value] = value.Value
		default:
			var v any
			if err := value.Decode(&v); err != nil {
				return fmt.Errorf("line %d: entry %q: %w", value.Line, key.Value, err)
			}
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("line %d: entry %q: %w", value.Line, key.Value, err)
			}
			out[key.Value] = string(data)
		}
	}
	*s = out
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Section) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Section, len(raw))
	for name, value := range raw {
		trimmed := bytes.TrimSpace(value)
		switch {
		case bytes.Equal(trimmed, []byte("null")):
			out[name] = ""
		case len(trimmed) > 0 && trimmed[0] == '"':
			var text string
			if err := json.Unmarshal(trimmed, &text); err != nil {
				return fmt.Errorf("entry %q: %w", name, err)
			}
			out[name] = text
		default:
			out[name] = string(trimmed)
		}
	}
	*s = out
	return nil
}
