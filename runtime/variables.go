package runtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Variables is an insertion-ordered string map. It backs both the
// caller-supplied input variables and the context threaded through a run.
// The zero value is an empty, usable set.
type Variables struct {
	keys   []string
	values map[string]string
}

var (
	_ json.Marshaler   = Variables{}
	_ json.Unmarshaler = (*Variables)(nil)
	_ yaml.Unmarshaler = (*Variables)(nil)
	_ Lookup           = (*Variables)(nil)
)

// NewVariables builds a Variables from alternating key/value pairs.
func NewVariables(pairs ...string) *Variables {
	if len(pairs)%2 != 0 {
		panic("NewVariables: odd number of arguments")
	}
	v := &Variables{}
	for i := 0; i < len(pairs); i += 2 {
		v.Set(pairs[i], pairs[i+1])
	}
	return v
}

// Set writes key, keeping the original position of an existing key.
func (v *Variables) Set(key, value string) {
	if v.values == nil {
		v.values = make(map[string]string)
	}
	if _, ok := v.values[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.values[key] = value
}

// Lookup implements the Lookup interface used by Render.
func (v *Variables) Lookup(key string) (string, bool) {
	if v == nil {
		return "", false
	}
	val, ok := v.values[key]
	return val, ok
}

func (v *Variables) Get(key string) string {
	val, _ := v.Lookup(key)
	return val
}

func (v *Variables) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keys)
}

// Keys returns the keys in insertion order.
func (v *Variables) Keys() []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v.keys...)
}

// Clone returns an independent copy.
func (v *Variables) Clone() *Variables {
	c := &Variables{}
	if v == nil {
		return c
	}
	for _, k := range v.keys {
		c.Set(k, v.values[k])
	}
	return c
}

func (v Variables) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range v.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of strings, keeping document order.
// A null document leaves the set empty.
func (v *Variables) UnmarshalJSON(data []byte) error {
	*v = Variables{}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("variables must be an object of strings")
	}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var val any
		if err := dec.Decode(&val); err != nil {
			return err
		}
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("variable %q must be a string, got %s", key, jsonTypeName(val))
		}
		v.Set(key, s)
	}
	_, err = dec.Token()
	return err
}

// UnmarshalYAML decodes a YAML mapping. Flow files are hand-written, so
// scalar values of any type are accepted and stringified.
func (v *Variables) UnmarshalYAML(node *yaml.Node) error {
	*v = Variables{}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: variables must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: variable %q must be a scalar", val.Line, k.Value)
		}
		var decoded any
		if err := val.Decode(&decoded); err != nil {
			return err
		}
		v.Set(k.Value, ToStringValue(decoded))
	}
	return nil
}

func jsonTypeName(val any) string {
	switch val.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", val)
	}
}
