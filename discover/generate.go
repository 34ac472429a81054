package discover

import (
	"reflect"
	"slices"

	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/schema"
)

// ParamDescriptor describes one client-supplied parameter of a method.
type ParamDescriptor struct {
	Name        string
	Type        reflect.Type
	Required    bool
	Summary     string
	Description string
	Deprecated  bool
	// SchemaTag is a `jsonschema` struct tag refining the derived schema.
	SchemaTag string
}

// MethodDescriptor is the read-only view of a registered method that
// documents are generated from.
type MethodDescriptor struct {
	Name   string
	Params []ParamDescriptor
	// ResultType is nil for methods without a result.
	ResultType        reflect.Type
	ResultDescription string

	// Explicit content descriptors replace the derived ones when set.
	ParamsOverride []ContentDescriptor
	ResultOverride *ContentDescriptor

	Summary        string
	Description    string
	Tags           []Tag
	Deprecated     bool
	ExternalDocs   *ExternalDocs
	Servers        []Server
	Errors         []Error
	Links          []Link
	ParamStructure ParamStructure
	Examples       []ExamplePairing
	Security       map[string][]string
}

type options struct {
	servers      []Server
	schemes      map[string]SecurityScheme
	examples     ExampleGenerator
	externalDocs *ExternalDocs
}

// Option configures document generation.
type Option func(*options)

// WithServers sets the servers listed in the document.
func WithServers(servers ...Server) Option {
	return func(o *options) {
		o.servers = servers
	}
}

// WithSecuritySchemes lists security schemes under components.x-securitySchemes.
func WithSecuritySchemes(schemes map[string]SecurityScheme) Option {
	return func(o *options) {
		o.schemes = schemes
	}
}

// WithExampleGenerator replaces DefaultExamples for synthesized examples.
func WithExampleGenerator(g ExampleGenerator) Option {
	return func(o *options) {
		o.examples = g
	}
}

// WithExternalDocs sets the document level external documentation.
func WithExternalDocs(docs *ExternalDocs) Option {
	return func(o *options) {
		o.externalDocs = docs
	}
}

// DefaultServer is listed when no servers are configured.
var DefaultServer = Server{Name: "default", URL: "localhost"}

// Generate builds an OpenRPC document. It reads methods without modifying
// them; every call starts from an empty schema registry, so repeated calls
// over the same methods yield equal documents.
func Generate(info Info, methods []MethodDescriptor, opts ...Option) *Document {
	o := options{examples: DefaultExamples}
	for _, opt := range opts {
		opt(&o)
	}

	servers := slices.Clone(o.servers)
	if len(servers) == 0 {
		servers = []Server{DefaultServer}
	}

	doc := &Document{
		OpenRPC:      OpenRPCVersion,
		Info:         info,
		Servers:      servers,
		Methods:      []Method{},
		ExternalDocs: o.externalDocs,
	}

	g := schema.NewGenerator()
	for _, m := range methods {
		if m.Name == protocol.MethodDiscover {
			continue
		}
		doc.Methods = append(doc.Methods, buildMethod(g, m, o.examples))
	}

	if comps := g.Components(); len(comps) > 0 || len(o.schemes) > 0 {
		doc.Components = &Components{Schemas: comps, XSecuritySchemes: o.schemes}
	}
	return doc
}

func buildMethod(g *schema.Generator, m MethodDescriptor, examples ExampleGenerator) Method {
	out := Method{
		Name:           m.Name,
		Tags:           slices.Clone(m.Tags),
		Summary:        m.Summary,
		Description:    m.Description,
		ExternalDocs:   m.ExternalDocs,
		Deprecated:     m.Deprecated,
		Servers:        slices.Clone(m.Servers),
		Errors:         slices.Clone(m.Errors),
		Links:          slices.Clone(m.Links),
		ParamStructure: m.ParamStructure,
	}

	if m.ParamsOverride != nil {
		out.Params = cloneDescriptors(m.ParamsOverride)
	} else {
		out.Params = make([]ContentDescriptor, 0, len(m.Params))
		for _, p := range m.Params {
			s := g.Schema(p.Type)
			schema.ApplyTag(p.SchemaTag, s)
			out.Params = append(out.Params, ContentDescriptor{
				Name:        p.Name,
				Summary:     p.Summary,
				Description: p.Description,
				Required:    p.Required,
				Schema:      s,
				Deprecated:  p.Deprecated,
			})
		}
	}

	if m.ResultOverride != nil {
		r := *m.ResultOverride
		r.Schema = r.Schema.Clone()
		out.Result = &r
	} else {
		out.Result = &ContentDescriptor{
			Name:        "result",
			Description: m.ResultDescription,
			Schema:      schema.Null(),
		}
		if m.ResultType != nil {
			out.Result.Schema = g.Schema(m.ResultType)
			out.Result.Required = !schema.IsNullable(m.ResultType)
		}
	}

	if len(m.Security) > 0 {
		out.XSecurity = make(map[string][]string, len(m.Security))
		for scheme, scopes := range m.Security {
			out.XSecurity[scheme] = slices.Clone(scopes)
		}
	}

	if len(m.Examples) > 0 {
		out.Examples = slices.Clone(m.Examples)
	} else if examples != nil {
		out.Examples = []ExamplePairing{synthesize(out, g.Components(), examples)}
	}
	return out
}

func synthesize(m Method, components map[string]*schema.Schema, examples ExampleGenerator) ExamplePairing {
	pairing := ExamplePairing{Name: m.Name + " example", Params: make([]Example, 0, len(m.Params))}
	for _, p := range m.Params {
		pairing.Params = append(pairing.Params, Example{
			Name:  p.Name,
			Value: examples.Example(p.Schema, components),
		})
	}
	if m.Result != nil {
		pairing.Result = &Example{Name: m.Result.Name, Value: examples.Example(m.Result.Schema, components)}
	}
	return pairing
}

func cloneDescriptors(in []ContentDescriptor) []ContentDescriptor {
	out := make([]ContentDescriptor, len(in))
	for i, cd := range in {
		cd.Schema = cd.Schema.Clone()
		out[i] = cd
	}
	return out
}
