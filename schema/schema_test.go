package schema

import (
	"encoding/json"
	"testing"
)

func TestSchema_Clone(t *testing.T) {
	orig := &Schema{
		Type:                 "object",
		Properties:           map[string]*Schema{"a": {Type: "integer", Minimum: ptr(1.0)}},
		Required:             []string{"a"},
		AdditionalProperties: &Schema{Type: "string"},
		AnyOf:                []*Schema{{Type: "null"}},
	}
	c := orig.Clone()
	if !c.Equal(orig) {
		t.Fatal("clone should equal the original")
	}

	c.Properties["a"].Type = "string"
	*c.Properties["a"].Minimum = 5
	c.Required[0] = "b"
	c.AdditionalProperties.(*Schema).Type = "integer"

	if orig.Properties["a"].Type != "integer" || *orig.Properties["a"].Minimum != 1 {
		t.Error("mutating the clone changed original properties")
	}
	if orig.Required[0] != "a" {
		t.Error("mutating the clone changed original required")
	}
	if orig.AdditionalProperties.(*Schema).Type != "string" {
		t.Error("mutating the clone changed original additionalProperties")
	}
}

func TestSchema_JSON(t *testing.T) {
	t.Run("marshals keywords", func(t *testing.T) {
		s := &Schema{Ref: "#/components/schemas/A"}
		b, _ := json.Marshal(s)
		if string(b) != `{"$ref":"#/components/schemas/A"}` {
			t.Errorf("Marshal() = %s", b)
		}

		b, _ = json.Marshal(&Schema{Type: "object", AdditionalProperties: true})
		if string(b) != `{"type":"object","additionalProperties":true}` {
			t.Errorf("Marshal() = %s", b)
		}
	})

	t.Run("unmarshals additionalProperties", func(t *testing.T) {
		var s Schema
		in := `{"type":"object","additionalProperties":{"type":"integer"},"properties":{"m":{"additionalProperties":false}}}`
		if err := json.Unmarshal([]byte(in), &s); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		sub, ok := s.AdditionalProperties.(*Schema)
		if !ok || sub.Type != "integer" {
			t.Errorf("AdditionalProperties = %#v, want integer schema", s.AdditionalProperties)
		}
		if s.Properties["m"].AdditionalProperties != false {
			t.Errorf("nested AdditionalProperties = %#v, want false", s.Properties["m"].AdditionalProperties)
		}
	})
}

func TestNullable(t *testing.T) {
	s := Nullable(&Schema{Type: "integer"})
	want := &Schema{AnyOf: []*Schema{{Type: "integer"}, {Type: "null"}}}
	if !s.Equal(want) {
		t.Errorf("Nullable() = %+v, want %+v", s, want)
	}
	if again := Nullable(s); again != s {
		t.Error("Nullable() should not wrap a schema that already accepts null")
	}
}

func TestFlatten(t *testing.T) {
	t.Run("hoists definitions and rewrites references", func(t *testing.T) {
		components := map[string]*Schema{}
		s := &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"child": {Ref: "#/$defs/Child"},
			},
			Defs: map[string]*Schema{
				"Child": {
					Type:       "object",
					Properties: map[string]*Schema{"leaf": {Ref: "#/$defs/Leaf"}},
					Defs:       map[string]*Schema{"Leaf": {Type: "string"}},
				},
			},
		}

		out := Flatten(s, components)

		if out.Defs != nil {
			t.Error("Defs should be removed")
		}
		if got := out.Properties["child"].Ref; got != "#/components/schemas/Child" {
			t.Errorf("child ref = %q", got)
		}
		child, ok := components["Child"]
		if !ok {
			t.Fatal("Child not hoisted")
		}
		if child.Defs != nil {
			t.Error("nested Defs should be removed")
		}
		if got := child.Properties["leaf"].Ref; got != "#/components/schemas/Leaf" {
			t.Errorf("leaf ref = %q", got)
		}
		if _, ok := components["Leaf"]; !ok {
			t.Error("nested Leaf not hoisted")
		}
	})

	t.Run("keeps existing components", func(t *testing.T) {
		existing := &Schema{Type: "integer"}
		components := map[string]*Schema{"X": existing}
		Flatten(&Schema{Defs: map[string]*Schema{"X": {Type: "string"}}}, components)
		if components["X"] != existing {
			t.Error("existing component was replaced")
		}
	})

	t.Run("unwraps a bare allOf reference", func(t *testing.T) {
		components := map[string]*Schema{}
		s := &Schema{
			AllOf: []*Schema{{Ref: "#/$defs/Model"}},
			Defs:  map[string]*Schema{"Model": {Title: "Model", Type: "object"}},
		}
		out := Flatten(s, components)
		if out.Title != "Model" || out.Type != "object" {
			t.Errorf("Flatten() = %+v, want the Model schema", out)
		}
	})
}
