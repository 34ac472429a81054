package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/felixgeelhaar/openrpc-go/discover"
	"github.com/felixgeelhaar/openrpc-go/schema"
)

// Metadata is the documentation and binding configuration of a method.
type Metadata struct {
	// Doc is a docstring; see discover.ParseDoc. Explicit fields win over
	// what it provides.
	Doc          string
	Summary      string
	Description  string
	Tags         []discover.Tag
	Deprecated   bool
	Errors       []discover.Error
	Links        []discover.Link
	Servers      []discover.Server
	ExternalDocs *discover.ExternalDocs
	Examples     []discover.ExamplePairing

	// Security lists the scheme scopes a caller must hold. Any one scheme
	// suffices; all scopes of that scheme are needed.
	Security map[string][]string

	ParamStructure discover.ParamStructure

	// ParamNames names the handler arguments after an optional context.
	// It must be empty for handlers taking a single params struct.
	ParamNames []string
	ParamDocs  map[string]string
	ResultDoc  string
	// Defaults holds default values by parameter name.
	Defaults map[string]any
	// Depends maps parameter names to dependency names. Such parameters
	// are filled from the call's dependencies and hidden from clients.
	Depends map[string]string
	// ValidateParams checks incoming params against their schemas before
	// decoding.
	ValidateParams bool

	// Params and Result replace the derived content descriptors.
	Params []discover.ContentDescriptor
	Result *discover.ContentDescriptor
}

var (
	contextType   = reflect.TypeFor[context.Context]()
	errorType     = reflect.TypeFor[error]()
	unmarshalType = reflect.TypeFor[json.Unmarshaler]()
)

// Method is a registered handler with its analysed signature.
type Method struct {
	name string
	fn   reflect.Value
	meta Metadata

	hasCtx bool
	// input is the params struct type in struct mode, nil otherwise.
	input       reflect.Type
	params      []*param
	result      reflect.Type
	resultIndex int
	errIndex    int

	validation *validation
}

type param struct {
	name        string
	typ         reflect.Type
	required    bool
	def         json.RawMessage
	dependency  string
	description string
	schemaTag   string
	// field is the struct field index path in struct mode.
	field []int
}

type validation struct {
	schemas    map[string]*schema.Schema
	components map[string]*schema.Schema
}

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// Metadata returns a copy of the method metadata.
func (m *Method) Metadata() Metadata {
	meta := m.meta
	meta.Tags = slices.Clone(meta.Tags)
	meta.Security = maps.Clone(meta.Security)
	return meta
}

func newMethod(name string, handler any, meta Metadata) (*Method, error) {
	fv := reflect.ValueOf(handler)
	if !fv.IsValid() || fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function, got %T", handler)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, errors.New("variadic handlers are not supported")
	}
	switch meta.ParamStructure {
	case "", discover.ByName, discover.ByPosition, discover.Either:
	default:
		return nil, fmt.Errorf("unknown param structure %q", meta.ParamStructure)
	}

	m := &Method{name: name, fn: fv, meta: meta, resultIndex: -1, errIndex: -1}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			m.errIndex = 0
		} else {
			m.resultIndex = 0
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, errors.New("second return value must be error")
		}
		m.resultIndex, m.errIndex = 0, 1
	default:
		return nil, fmt.Errorf("handler returns %d values, want at most 2", ft.NumOut())
	}
	if m.resultIndex >= 0 {
		m.result = ft.Out(m.resultIndex)
	}

	first := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		m.hasCtx = true
		first = 1
	}

	doc := discover.ParseDoc(meta.Doc)
	if m.meta.Summary == "" {
		m.meta.Summary = doc.Summary
	}
	if m.meta.Description == "" {
		m.meta.Description = doc.Description
	}
	if m.meta.ResultDoc == "" {
		m.meta.ResultDoc = doc.Returns
	}

	var err error
	if n := ft.NumIn() - first; n == 1 && len(meta.ParamNames) == 0 && isParamsStruct(ft.In(first)) {
		m.input = ft.In(first)
		m.params, err = structParams(m.input, nil, meta)
	} else {
		m.params, err = argParams(ft, first, meta)
	}
	if err != nil {
		return nil, err
	}

	for _, p := range m.params {
		if p.description == "" {
			p.description = doc.Params[p.name]
		}
		if d, ok := meta.ParamDocs[p.name]; ok {
			p.description = d
		}
	}
	if err := checkKnown(m.params, meta); err != nil {
		return nil, err
	}

	if meta.ValidateParams {
		m.validation = newValidation(m.params)
	}
	return m, nil
}

// isParamsStruct reports whether t is bound field by field.
func isParamsStruct(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	return !reflect.PointerTo(t).Implements(unmarshalType) && !t.Implements(unmarshalType)
}

func argParams(ft reflect.Type, first int, meta Metadata) ([]*param, error) {
	n := ft.NumIn() - first
	if len(meta.ParamNames) != n {
		return nil, fmt.Errorf("handler takes %d parameters but %d names were given", n, len(meta.ParamNames))
	}
	params := make([]*param, 0, n)
	for i, name := range meta.ParamNames {
		if name == "" {
			return nil, fmt.Errorf("parameter %d has no name", i)
		}
		if slices.ContainsFunc(params, func(p *param) bool { return p.name == name }) {
			return nil, fmt.Errorf("duplicate parameter %q", name)
		}
		p := &param{name: name, typ: ft.In(first + i), dependency: meta.Depends[name]}
		if v, ok := meta.Defaults[name]; ok {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("default for %q: %w", name, err)
			}
			p.def = raw
		}
		p.required = p.dependency == "" && p.def == nil && !schema.IsNullable(p.typ)
		params = append(params, p)
	}
	return params, nil
}

func structParams(t reflect.Type, index []int, meta Metadata) ([]*param, error) {
	var params []*param
	for i := range t.NumField() {
		f := t.Field(i)
		path := append(slices.Clone(index), i)
		name, omitEmpty := schema.FieldName(f)

		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			embedded, err := structParams(f.Type, path, meta)
			if err != nil {
				return nil, err
			}
			params = append(params, embedded...)
			continue
		}
		if !f.IsExported() {
			continue
		}
		p := &param{typ: f.Type, field: path, schemaTag: f.Tag.Get("jsonschema")}
		if err := parseRPCTag(f.Tag.Get("rpc"), p); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		// Fields hidden from JSON still take dependencies.
		if name == "-" && p.dependency == "" {
			continue
		}
		if name == "" || name == "-" {
			name = f.Name
		}
		p.name = name
		if dep, ok := meta.Depends[name]; ok {
			p.dependency = dep
		}
		if v, ok := meta.Defaults[name]; ok {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("default for %q: %w", name, err)
			}
			p.def = raw
		}

		explicit := schema.ApplyTag(p.schemaTag, &schema.Schema{})
		p.required = p.dependency == "" && p.def == nil &&
			(explicit || (!omitEmpty && !schema.IsNullable(f.Type)))
		params = append(params, p)
	}
	return params, nil
}

// parseRPCTag reads `rpc:"depends=name,default=<json>"`. The default
// consumes the rest of the tag.
func parseRPCTag(tag string, p *param) error {
	for tag != "" {
		var part string
		if strings.HasPrefix(tag, "default=") {
			part, tag = tag, ""
		} else {
			part, tag, _ = strings.Cut(tag, ",")
		}
		key, value, _ := strings.Cut(part, "=")
		switch key {
		case "depends":
			p.dependency = value
		case "default":
			if !json.Valid([]byte(value)) {
				return fmt.Errorf("default %q is not valid JSON", value)
			}
			p.def = json.RawMessage(value)
		case "":
		default:
			return fmt.Errorf("unknown rpc tag option %q", key)
		}
	}
	return nil
}

func checkKnown(params []*param, meta Metadata) error {
	known := func(name string) bool {
		return slices.ContainsFunc(params, func(p *param) bool { return p.name == name })
	}
	for name := range meta.Depends {
		if !known(name) {
			return fmt.Errorf("dependency for unknown parameter %q", name)
		}
	}
	for name := range meta.Defaults {
		if !known(name) {
			return fmt.Errorf("default for unknown parameter %q", name)
		}
	}
	return nil
}

func newValidation(params []*param) *validation {
	g := schema.NewGenerator()
	v := &validation{schemas: make(map[string]*schema.Schema, len(params))}
	for _, p := range params {
		if p.dependency != "" {
			continue
		}
		s := g.Schema(p.typ)
		schema.ApplyTag(p.schemaTag, s)
		v.schemas[p.name] = s
	}
	v.components = g.Components()
	return v
}

// clientParams returns the parameters supplied by callers, in order.
func (m *Method) clientParams() []*param {
	out := make([]*param, 0, len(m.params))
	for _, p := range m.params {
		if p.dependency == "" {
			out = append(out, p)
		}
	}
	return out
}

// PanicError reports a panic raised by a handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// call invokes the handler with bound arguments.
func (m *Method) call(args []reflect.Value) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	out := m.fn.Call(args)
	if m.errIndex >= 0 {
		if e, _ := out[m.errIndex].Interface().(error); e != nil {
			return nil, e
		}
	}
	if m.resultIndex >= 0 {
		return out[m.resultIndex].Interface(), nil
	}
	return nil, nil
}

// included returns a copy of m registered under a prefixed name with
// extra tags.
func (m *Method) included(prefix string, tags []discover.Tag) *Method {
	if prefix == "" && len(tags) == 0 {
		return m
	}
	c := *m
	c.name = prefix + m.name
	c.meta.Tags = append(slices.Clone(m.meta.Tags), tags...)
	return &c
}

// Descriptor returns the view of m used for discovery.
func (m *Method) Descriptor() discover.MethodDescriptor {
	d := discover.MethodDescriptor{
		Name:              m.name,
		ResultType:        m.result,
		ResultDescription: m.meta.ResultDoc,
		ParamsOverride:    m.meta.Params,
		ResultOverride:    m.meta.Result,
		Summary:           m.meta.Summary,
		Description:       m.meta.Description,
		Tags:              m.meta.Tags,
		Deprecated:        m.meta.Deprecated,
		ExternalDocs:      m.meta.ExternalDocs,
		Servers:           m.meta.Servers,
		Errors:            m.meta.Errors,
		Links:             m.meta.Links,
		ParamStructure:    m.meta.ParamStructure,
		Examples:          m.meta.Examples,
		Security:          m.meta.Security,
	}
	for _, p := range m.clientParams() {
		d.Params = append(d.Params, discover.ParamDescriptor{
			Name:        p.name,
			Type:        p.typ,
			Required:    p.required,
			Description: p.description,
			SchemaTag:   p.schemaTag,
		})
	}
	return d
}
