package schema

import "strings"

// Flatten moves the $defs of s into components and rewrites every
// "#/$defs/X" pointer in s and in the moved definitions to the component
// reference. Existing components win on name clashes. A bare
// allOf wrapper around a single hoisted reference resolves to the
// referenced schema itself.
func Flatten(s *Schema, components map[string]*Schema) *Schema {
	hoist(s, components)
	s.Walk(rewriteRef)

	if s.Title == "" && s.Type == "" && len(s.Properties) == 0 && len(s.AllOf) == 1 {
		if name, ok := s.AllOf[0].ComponentName(); ok {
			if target, ok := components[name]; ok {
				resolved := target.Clone()
				if s.Description != "" {
					resolved.Description = s.Description
				}
				return resolved
			}
		}
	}
	return s
}

func hoist(s *Schema, components map[string]*Schema) {
	var owners []*Schema
	s.Walk(func(sub *Schema) {
		if len(sub.Defs) == 0 {
			return
		}
		owners = append(owners, sub)
		for name, def := range sub.Defs {
			if _, exists := components[name]; !exists {
				components[name] = def
			}
		}
	})
	for _, o := range owners {
		o.Defs = nil
	}
	for _, c := range components {
		c.Walk(rewriteRef)
	}
}

func rewriteRef(s *Schema) {
	if strings.HasPrefix(s.Ref, defsPrefix) {
		s.Ref = ComponentsPrefix + strings.TrimPrefix(s.Ref, defsPrefix)
	}
}
