// Package schema provides JSON Schema generation from Go types.
package schema

import (
	"encoding/json"
	"reflect"
)

// ComponentsPrefix is the reference prefix of shared component schemas.
const ComponentsPrefix = "#/components/schemas/"

const defsPrefix = "#/$defs/"

const (
	typeObject  = "object"
	typeArray   = "array"
	typeString  = "string"
	typeInteger = "integer"
	typeNumber  = "number"
	typeBoolean = "boolean"
	typeNull    = "null"
)

// Schema represents a JSON Schema. It is recursive: properties, items and
// combinators hold further schemas.
type Schema struct {
	Ref         string `json:"$ref,omitempty"`
	Title       string `json:"title,omitempty"`
	Type        string `json:"type,omitempty"`
	Format      string `json:"format,omitempty"`
	Description string `json:"description,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	Const       any    `json:"const,omitempty"`
	Default     any    `json:"default,omitempty"`

	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	// AdditionalProperties is nil, a bool or a *Schema.
	AdditionalProperties any     `json:"additionalProperties,omitempty"`
	Items                *Schema `json:"items,omitempty"`

	AnyOf []*Schema `json:"anyOf,omitempty"`
	OneOf []*Schema `json:"oneOf,omitempty"`
	AllOf []*Schema `json:"allOf,omitempty"`
	Not   *Schema   `json:"not,omitempty"`

	Minimum   *float64 `json:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	MinItems  *int     `json:"minItems,omitempty"`
	MaxItems  *int     `json:"maxItems,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`

	Deprecated bool               `json:"deprecated,omitempty"`
	Examples   []any              `json:"examples,omitempty"`
	Defs       map[string]*Schema `json:"$defs,omitempty"`
}

// Ref returns a schema referencing the named component.
func Ref(name string) *Schema {
	return &Schema{Ref: ComponentsPrefix + name}
}

// Null returns the schema accepting only null.
func Null() *Schema {
	return &Schema{Type: typeNull}
}

// Nullable wraps s so that null is also accepted.
func Nullable(s *Schema) *Schema {
	if s.AcceptsNull() {
		return s
	}
	return &Schema{AnyOf: []*Schema{s, Null()}}
}

// AcceptsNull reports whether s explicitly admits null.
func (s *Schema) AcceptsNull() bool {
	if s.Type == typeNull {
		return true
	}
	for _, sub := range s.AnyOf {
		if sub.AcceptsNull() {
			return true
		}
	}
	return false
}

// ComponentName returns the component name s references, if any.
func (s *Schema) ComponentName() (string, bool) {
	if len(s.Ref) > len(ComponentsPrefix) && s.Ref[:len(ComponentsPrefix)] == ComponentsPrefix {
		return s.Ref[len(ComponentsPrefix):], true
	}
	return "", false
}

// Equal reports whether two schemas are structurally equal.
func (s *Schema) Equal(other *Schema) bool {
	return reflect.DeepEqual(s, other)
}

// Clone returns a deep copy of s. Enum, const, default and example values
// are shared.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	c := *s
	c.Properties = cloneMap(s.Properties)
	c.Defs = cloneMap(s.Defs)
	c.Items = s.Items.Clone()
	c.Not = s.Not.Clone()
	c.AnyOf = cloneSlice(s.AnyOf)
	c.OneOf = cloneSlice(s.OneOf)
	c.AllOf = cloneSlice(s.AllOf)
	if sub, ok := s.AdditionalProperties.(*Schema); ok {
		c.AdditionalProperties = sub.Clone()
	}
	if s.Required != nil {
		c.Required = append([]string(nil), s.Required...)
	}
	if s.Enum != nil {
		c.Enum = append([]any(nil), s.Enum...)
	}
	if s.Examples != nil {
		c.Examples = append([]any(nil), s.Examples...)
	}
	c.Minimum = clonePtr(s.Minimum)
	c.Maximum = clonePtr(s.Maximum)
	c.MinLength = clonePtr(s.MinLength)
	c.MaxLength = clonePtr(s.MaxLength)
	c.MinItems = clonePtr(s.MinItems)
	c.MaxItems = clonePtr(s.MaxItems)
	return &c
}

// Walk calls fn for s and every schema nested in it, depth first.
func (s *Schema) Walk(fn func(*Schema)) {
	if s == nil {
		return
	}
	fn(s)
	for _, p := range s.Properties {
		p.Walk(fn)
	}
	for _, d := range s.Defs {
		d.Walk(fn)
	}
	s.Items.Walk(fn)
	s.Not.Walk(fn)
	for _, group := range [][]*Schema{s.AnyOf, s.OneOf, s.AllOf} {
		for _, sub := range group {
			sub.Walk(fn)
		}
	}
	if sub, ok := s.AdditionalProperties.(*Schema); ok {
		sub.Walk(fn)
	}
}

// UnmarshalJSON decodes a schema, turning an object-valued
// additionalProperties into a *Schema.
func (s *Schema) UnmarshalJSON(data []byte) error {
	type plain Schema
	aux := struct {
		*plain
		AdditionalProperties json.RawMessage `json:"additionalProperties,omitempty"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.AdditionalProperties = nil
	if len(aux.AdditionalProperties) == 0 {
		return nil
	}
	var b bool
	if err := json.Unmarshal(aux.AdditionalProperties, &b); err == nil {
		s.AdditionalProperties = b
		return nil
	}
	sub := &Schema{}
	if err := json.Unmarshal(aux.AdditionalProperties, sub); err != nil {
		return err
	}
	s.AdditionalProperties = sub
	return nil
}

func cloneMap(m map[string]*Schema) map[string]*Schema {
	if m == nil {
		return nil
	}
	out := make(map[string]*Schema, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

func cloneSlice(in []*Schema) []*Schema {
	if in == nil {
		return nil
	}
	out := make([]*Schema, len(in))
	for i, v := range in {
		out[i] = v.Clone()
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
