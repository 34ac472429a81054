package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// ValidationError is one failed constraint. Path locates the offending
// value, for example "user.tags[2]"; it is empty for the root value.
type ValidationError struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors collects every failed constraint of one value. It is
// used as error data for invalid params.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	lines := make([]string, 0, len(e)+1)
	lines = append(lines, "validation failed:")
	for _, err := range e {
		lines = append(lines, "  - "+err.Error())
	}
	return strings.Join(lines, "\n")
}

// Validate checks JSON data against s. References cannot be resolved.
func (s *Schema) Validate(data json.RawMessage) error {
	return s.ValidateWith(data, nil)
}

// ValidateWith checks JSON data against s, resolving $ref through
// components. It returns ValidationErrors on failure.
func (s *Schema) ValidateWith(data json.RawMessage, components map[string]*Schema) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return &ValidationError{Message: "invalid JSON: " + err.Error()}
	}
	return s.check(value, components)
}

// ValidateValue checks a value produced by encoding/json decoding into
// an any against s.
func (s *Schema) ValidateValue(value any) error {
	return s.check(value, nil)
}

func (s *Schema) check(value any, components map[string]*Schema) error {
	c := &checker{components: components}
	c.walk(s, "", value)
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs
}

type checker struct {
	components map[string]*Schema
	errs       ValidationErrors
}

func (c *checker) fail(path, format string, args ...any) {
	c.errs = append(c.errs, &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// passes reports whether value satisfies s without recording errors.
func (c *checker) passes(s *Schema, path string, value any) bool {
	sub := &checker{components: c.components}
	sub.walk(s, path, value)
	return len(sub.errs) == 0
}

func (c *checker) walk(s *Schema, path string, value any) {
	if s.Ref != "" {
		name := strings.TrimPrefix(strings.TrimPrefix(s.Ref, ComponentsPrefix), defsPrefix)
		target, ok := c.components[name]
		if !ok {
			c.fail(path, "unresolved reference %q", s.Ref)
			return
		}
		c.walk(target, path, value)
		return
	}

	if !c.combinators(s, path, value) {
		return
	}
	if len(s.Enum) > 0 && !equalsAny(s.Enum, value) {
		c.fail(path, "value must be one of: %v", s.Enum)
	}
	if s.Const != nil && !equalsAny([]any{s.Const}, value) {
		c.fail(path, "value must be %v", s.Const)
	}

	if s.Type == "" {
		return
	}
	if value == nil {
		if s.Type != "null" {
			c.fail(path, "expected %s, got null", s.Type)
		}
		return
	}

	switch s.Type {
	case "object":
		c.object(s, path, value)
	case "array":
		c.array(s, path, value)
	case "string":
		c.str(s, path, value)
	case "integer", "number":
		c.number(s, path, value)
	case "boolean":
		if _, ok := value.(bool); !ok {
			c.fail(path, "expected boolean, got %s", kindOf(value))
		}
	case "null":
		c.fail(path, "expected null, got %s", kindOf(value))
	}
}

// combinators applies anyOf, oneOf, allOf and not. It returns false when
// further checks would only repeat the failure.
func (c *checker) combinators(s *Schema, path string, value any) bool {
	if len(s.AnyOf) > 0 && c.count(s.AnyOf, path, value) == 0 {
		c.fail(path, "value matches none of the allowed schemas")
		return false
	}
	if len(s.OneOf) > 0 {
		if n := c.count(s.OneOf, path, value); n != 1 {
			c.fail(path, "value must match exactly one schema, matched %d", n)
			return false
		}
	}
	for _, sub := range s.AllOf {
		c.walk(sub, path, value)
	}
	if s.Not != nil && c.passes(s.Not, path, value) {
		c.fail(path, "value matches a disallowed schema")
	}
	return true
}

func (c *checker) count(options []*Schema, path string, value any) int {
	n := 0
	for _, opt := range options {
		if c.passes(opt, path, value) {
			n++
		}
	}
	return n
}

func (c *checker) object(s *Schema, path string, value any) {
	obj, ok := value.(map[string]any)
	if !ok {
		c.fail(path, "expected object, got %s", kindOf(value))
		return
	}
	for _, name := range s.Required {
		if _, ok := obj[name]; !ok {
			c.fail(joinPath(path, name), "required field is missing")
		}
	}
	for name, v := range obj {
		at := joinPath(path, name)
		if prop, ok := s.Properties[name]; ok {
			c.walk(prop, at, v)
			continue
		}
		switch extra := s.AdditionalProperties.(type) {
		case bool:
			if !extra {
				c.fail(at, "additional property is not allowed")
			}
		case *Schema:
			c.walk(extra, at, v)
		}
	}
}

func (c *checker) array(s *Schema, path string, value any) {
	items, ok := value.([]any)
	if !ok {
		c.fail(path, "expected array, got %s", kindOf(value))
		return
	}
	if s.MinItems != nil && len(items) < *s.MinItems {
		c.fail(path, "expected at least %d items, got %d", *s.MinItems, len(items))
	}
	if s.MaxItems != nil && len(items) > *s.MaxItems {
		c.fail(path, "expected at most %d items, got %d", *s.MaxItems, len(items))
	}
	if s.Items == nil {
		return
	}
	for i, item := range items {
		c.walk(s.Items, path+"["+strconv.Itoa(i)+"]", item)
	}
}

func (c *checker) str(s *Schema, path string, value any) {
	str, ok := value.(string)
	if !ok {
		c.fail(path, "expected string, got %s", kindOf(value))
		return
	}
	n := utf8.RuneCountInString(str)
	if s.MinLength != nil && n < *s.MinLength {
		c.fail(path, "length %d is less than minimum %d", n, *s.MinLength)
	}
	if s.MaxLength != nil && n > *s.MaxLength {
		c.fail(path, "length %d is greater than maximum %d", n, *s.MaxLength)
	}
	if s.Pattern != "" {
		if re, err := compilePattern(s.Pattern); err == nil && !re.MatchString(str) {
			c.fail(path, "value does not match pattern %q", s.Pattern)
		}
	}
}

func (c *checker) number(s *Schema, path string, value any) {
	f, ok := toFloat(value)
	if !ok {
		c.fail(path, "expected %s, got %s", s.Type, kindOf(value))
		return
	}
	if s.Type == "integer" && f != math.Trunc(f) {
		c.fail(path, "expected integer, got decimal number")
		return
	}
	if s.Minimum != nil && f < *s.Minimum {
		c.fail(path, "value %v is less than minimum %v", f, *s.Minimum)
	}
	if s.Maximum != nil && f > *s.Maximum {
		c.fail(path, "value %v is greater than maximum %v", f, *s.Maximum)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// kindOf names the JSON kind of a decoded value for error messages.
func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number, float64, float32, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// equalsAny compares by canonical JSON encoding, so 1 and 1.0 are equal.
func equalsAny(options []any, value any) bool {
	want, ok := canonical(value)
	if !ok {
		return false
	}
	for _, opt := range options {
		if got, ok := canonical(opt); ok && got == want {
			return true
		}
	}
	return false
}

func canonical(v any) (string, bool) {
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64), true
	}
	b, err := json.Marshal(v)
	return string(b), err == nil
}

var patterns sync.Map // string -> *regexp.Regexp

func compilePattern(p string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(p); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}
	patterns.Store(p, re)
	return re, nil
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}
