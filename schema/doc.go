// Package schema provides JSON Schema generation from Go types.
//
// A Generator walks Go types and produces JSON Schema values. Named structs,
// enums and provider types become shared components referenced through
// "#/components/schemas/<Name>"; everything else is inlined.
//
// # Basic Usage
//
//	g := schema.NewGenerator()
//	s := g.Schema(reflect.TypeFor[Person]())  // {"$ref": "#/components/schemas/Person"}
//	components := g.Components()              // {"Person": {...}}
//
// # Type Mapping
//
//   - Structs: objects with properties; named structs are registered once
//   - Strings, integers, floats, booleans: the matching JSON type
//   - Slices/Arrays: arrays with items ([]byte is a base64 string)
//   - Maps: objects with additionalProperties
//   - Pointers and Optional[T]: anyOf the element schema and null
//   - Either[A, B]: anyOf both members
//   - time.Time: string with date-time format
//
// # Struct Tags
//
//	type Example struct {
//	    // json tag controls field name; omitempty makes a field optional
//	    Name string `json:"name"`
//
//	    // jsonschema tag adds constraints; description must come last
//	    Age int `json:"age,omitempty" jsonschema:"required,minimum=0,description=Age in years"`
//
//	    // json:"-" excludes field
//	    Ignored string `json:"-"`
//	}
//
// # Custom Schemas
//
// Types implement Enum for closed value sets, Describer for component
// descriptions and Provider to supply a schema outright. Definitions nested
// under $defs in a provided schema are hoisted into the components.
package schema
