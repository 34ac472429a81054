package schema

import (
	"encoding/json"
	"path"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Provider is implemented by types that supply their own schema. Nested
// definitions under $defs are hoisted into the shared components.
type Provider interface {
	JSONSchema() *Schema
}

// Enum is implemented by named types with a closed set of values.
type Enum interface {
	EnumValues() []any
}

// Describer is implemented by types that carry a schema description.
type Describer interface {
	SchemaDescription() string
}

var (
	timeType       = reflect.TypeFor[time.Time]()
	rawMessageType = reflect.TypeFor[json.RawMessage]()
	numberType     = reflect.TypeFor[json.Number]()
)

// Generator converts Go types to schemas. Named structs, enums and provider
// types are registered once per generator, keyed by type identity, and
// referenced through $ref everywhere they appear. A generator is not safe
// for concurrent use; create one per document.
type Generator struct {
	names   map[reflect.Type]string
	owners  map[string]reflect.Type
	schemas map[string]*Schema
}

// NewGenerator creates an empty generator.
func NewGenerator() *Generator {
	return &Generator{
		names:   make(map[reflect.Type]string),
		owners:  make(map[string]reflect.Type),
		schemas: make(map[string]*Schema),
	}
}

// Components returns the named schemas registered so far.
func (g *Generator) Components() map[string]*Schema {
	return g.schemas
}

// Schema returns the schema for t. The result is a fresh value the caller
// may modify; named types come back as a $ref.
func (g *Generator) Schema(t reflect.Type) *Schema {
	switch t {
	case nil, rawMessageType:
		return &Schema{}
	case timeType:
		return &Schema{Type: typeString, Format: "date-time"}
	case numberType:
		return &Schema{Type: typeNumber}
	}

	if t.Kind() == reflect.Pointer {
		return Nullable(g.Schema(t.Elem()))
	}
	if elem, ok := optionalElem(t); ok {
		return Nullable(g.Schema(elem))
	}
	if members, ok := unionMembers(t); ok {
		s := &Schema{}
		for _, m := range members {
			s.AnyOf = append(s.AnyOf, g.Schema(m))
		}
		return s
	}
	if t.Kind() != reflect.Interface {
		if p, ok := as[Provider](t); ok {
			return g.register(t, func(string) *Schema { return g.provided(p) })
		}
		if e, ok := as[Enum](t); ok {
			return g.register(t, func(name string) *Schema {
				return &Schema{Title: name, Enum: e.EnumValues(), Description: describe(t)}
			})
		}
	}

	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: typeString}
	case reflect.Bool:
		return &Schema{Type: typeBoolean}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: typeInteger}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: typeNumber}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &Schema{Type: typeString, Format: "byte"}
		}
		return &Schema{Type: typeArray, Items: g.Schema(t.Elem())}
	case reflect.Array:
		n := t.Len()
		return &Schema{Type: typeArray, Items: g.Schema(t.Elem()), MinItems: &n, MaxItems: &n}
	case reflect.Map:
		if t.Elem().Kind() == reflect.Interface {
			return &Schema{Type: typeObject, AdditionalProperties: true}
		}
		return &Schema{Type: typeObject, AdditionalProperties: g.Schema(t.Elem())}
	case reflect.Struct:
		if t.Name() == "" {
			return g.structSchema(t, "")
		}
		return g.register(t, func(name string) *Schema { return g.structSchema(t, name) })
	default:
		return &Schema{}
	}
}

// register returns a reference to the component for t, building it on
// first sight. The name is reserved before build runs, so a type that
// reaches itself while being built gets a reference instead of recursing.
func (g *Generator) register(t reflect.Type, build func(name string) *Schema) *Schema {
	if name, ok := g.names[t]; ok {
		return Ref(name)
	}
	name := g.nameFor(t)
	g.names[t] = name
	g.owners[name] = t
	g.schemas[name] = build(name)
	return Ref(name)
}

func (g *Generator) nameFor(t reflect.Type) string {
	name := typeName(t)
	if _, taken := g.owners[name]; !taken {
		return name
	}
	qualified := exportName(path.Base(t.PkgPath())) + name
	if _, taken := g.owners[qualified]; !taken {
		return qualified
	}
	for i := 2; ; i++ {
		candidate := qualified + strconv.Itoa(i)
		if _, taken := g.owners[candidate]; !taken {
			return candidate
		}
	}
}

func (g *Generator) provided(p Provider) *Schema {
	s := p.JSONSchema()
	if s == nil {
		return &Schema{}
	}
	return Flatten(s.Clone(), g.schemas)
}

func (g *Generator) structSchema(t reflect.Type, title string) *Schema {
	s := &Schema{
		Title:       title,
		Type:        typeObject,
		Properties:  make(map[string]*Schema),
		Description: describe(t),
	}
	g.addFields(t, s)
	return s
}

func (g *Generator) addFields(t reflect.Type, s *Schema) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, omitEmpty := FieldName(field)

		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if field.Anonymous && name == "" && ft.Kind() == reflect.Struct {
			g.addFields(ft, s)
			continue
		}
		if !field.IsExported() || name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}

		fieldSchema := g.Schema(field.Type)
		required := !IsNullable(field.Type) && !omitEmpty
		if ApplyTag(field.Tag.Get("jsonschema"), fieldSchema) {
			required = true
		}
		if field.Tag.Get("deprecated") == "true" {
			fieldSchema.Deprecated = true
		}

		s.Properties[name] = fieldSchema
		if required {
			s.Required = append(s.Required, name)
		}
	}
}

// FieldName returns the JSON name of a struct field and whether it is
// omitted when empty. The name is empty when the json tag does not set one
// and "-" for skipped fields.
func FieldName(field reflect.StructField) (name string, omitEmpty bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return "", false
	}
	name, rest, _ := strings.Cut(tag, ",")
	for _, o := range strings.Split(rest, ",") {
		if o == "omitempty" || o == "omitzero" {
			omitEmpty = true
		}
	}
	return name, omitEmpty
}

// ApplyTag applies a `jsonschema` struct tag to s and reports whether the
// field is explicitly required. A description containing commas must come
// last.
func ApplyTag(tag string, s *Schema) bool {
	if tag == "" {
		return false
	}
	required := false
	for tag != "" {
		var part string
		if strings.HasPrefix(tag, "description=") {
			part, tag = tag, ""
		} else {
			part, tag, _ = strings.Cut(tag, ",")
		}
		part = strings.TrimSpace(part)
		key, value, _ := strings.Cut(part, "=")
		switch key {
		case "required":
			required = true
		case "description":
			s.Description = value
		case "format":
			s.Format = value
		case "pattern":
			s.Pattern = value
		case "minimum":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				s.Minimum = &f
			}
		case "maximum":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				s.Maximum = &f
			}
		case "minLength":
			if n, err := strconv.Atoi(value); err == nil {
				s.MinLength = &n
			}
		case "maxLength":
			if n, err := strconv.Atoi(value); err == nil {
				s.MaxLength = &n
			}
		case "enum":
			for _, v := range strings.Split(value, "|") {
				s.Enum = append(s.Enum, v)
			}
		}
	}
	return required
}

// as returns the t-typed zero value as I when t (or *t) implements I.
func as[I any](t reflect.Type) (I, bool) {
	it := reflect.TypeFor[I]()
	if t.Implements(it) {
		v, ok := reflect.Zero(t).Interface().(I)
		return v, ok
	}
	if reflect.PointerTo(t).Implements(it) {
		v, ok := reflect.New(t).Interface().(I)
		return v, ok
	}
	var zero I
	return zero, false
}

func describe(t reflect.Type) string {
	if t.Name() == "" {
		return ""
	}
	if d, ok := as[Describer](t); ok {
		return d.SchemaDescription()
	}
	return ""
}

// typeName returns a component-safe name for t. Generic instantiations
// append their type arguments: Page[pkg.Item] becomes PageItem.
func typeName(t reflect.Type) string {
	name := t.Name()
	base, args, generic := strings.Cut(name, "[")
	if !generic {
		return name
	}
	var b strings.Builder
	b.WriteString(base)
	for _, arg := range strings.Split(strings.TrimSuffix(args, "]"), ",") {
		if i := strings.LastIndexAny(arg, "./"); i >= 0 {
			arg = arg[i+1:]
		}
		b.WriteString(exportName(arg))
	}
	return b.String()
}

func exportName(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
