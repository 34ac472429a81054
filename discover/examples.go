package discover

import "github.com/felixgeelhaar/openrpc-go/schema"

// ExampleGenerator produces a representative value for a schema. Components
// resolve $ref pointers.
type ExampleGenerator interface {
	Example(s *schema.Schema, components map[string]*schema.Schema) any
}

// ExampleFunc adapts a function to ExampleGenerator.
type ExampleFunc func(s *schema.Schema, components map[string]*schema.Schema) any

// Example implements ExampleGenerator.
func (f ExampleFunc) Example(s *schema.Schema, components map[string]*schema.Schema) any {
	return f(s, components)
}

// DefaultExamples builds deterministic example values: the first declared
// example, default, const or enum value when there is one, otherwise a fixed
// placeholder per type.
var DefaultExamples ExampleGenerator = ExampleFunc(func(s *schema.Schema, components map[string]*schema.Schema) any {
	return exampleValue(s, components, map[string]bool{})
})

func exampleValue(s *schema.Schema, components map[string]*schema.Schema, expanding map[string]bool) any {
	if s == nil {
		return nil
	}
	switch {
	case len(s.Examples) > 0:
		return s.Examples[0]
	case s.Default != nil:
		return s.Default
	case s.Const != nil:
		return s.Const
	case len(s.Enum) > 0:
		return s.Enum[0]
	}

	if name, ok := s.ComponentName(); ok {
		target, found := components[name]
		if !found || expanding[name] {
			return nil
		}
		expanding[name] = true
		defer delete(expanding, name)
		return exampleValue(target, components, expanding)
	}

	for _, group := range [][]*schema.Schema{s.AnyOf, s.OneOf} {
		for _, sub := range group {
			if sub.Type == "null" {
				continue
			}
			if v := exampleValue(sub, components, expanding); v != nil {
				return v
			}
		}
	}
	if len(s.AllOf) > 0 {
		return exampleValue(s.AllOf[0], components, expanding)
	}

	switch s.Type {
	case "integer":
		if s.Minimum != nil {
			return int64(*s.Minimum)
		}
		return 1
	case "number":
		if s.Minimum != nil {
			return *s.Minimum
		}
		return 1.0
	case "string":
		return stringExample(s.Format)
	case "boolean":
		return true
	case "array":
		item := exampleValue(s.Items, components, expanding)
		if item == nil {
			return []any{}
		}
		n := 1
		if s.MinItems != nil && *s.MinItems > n {
			n = *s.MinItems
		}
		out := make([]any, n)
		for i := range out {
			out[i] = item
		}
		return out
	case "object":
		out := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			out[name] = exampleValue(prop, components, expanding)
		}
		return out
	default:
		return nil
	}
}

func stringExample(format string) string {
	switch format {
	case "date-time":
		return "2024-01-01T00:00:00Z"
	case "date":
		return "2024-01-01"
	case "email":
		return "user@example.com"
	case "uri":
		return "https://example.com"
	case "byte":
		return "c3RyaW5n"
	default:
		return "string"
	}
}
