package server

import (
	"errors"

	"github.com/felixgeelhaar/openrpc-go/discover"
)

// MethodBuilder provides a fluent API for registering methods. The first
// error encountered is kept and reported by Err; later calls are no-ops.
type MethodBuilder struct {
	registry *Registry
	name     string
	meta     Metadata
	err      error
}

// Summary sets a short summary of the method.
func (b *MethodBuilder) Summary(summary string) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.Summary = summary
	return b
}

// Description sets a verbose description of the method.
func (b *MethodBuilder) Description(desc string) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.Description = desc
	return b
}

// Doc sets a docstring from which the summary, description, parameter
// and result documentation are derived.
func (b *MethodBuilder) Doc(doc string) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.Doc = doc
	return b
}

// Tags adds tags by name.
func (b *MethodBuilder) Tags(names ...string) *MethodBuilder {
	if b.err != nil {
		return b
	}
	for _, n := range names {
		b.meta.Tags = append(b.meta.Tags, discover.Tag{Name: n})
	}
	return b
}

// Tag adds a fully described tag.
func (b *MethodBuilder) Tag(tag discover.Tag) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.Tags = append(b.meta.Tags, tag)
	return b
}

// Deprecated marks the method as deprecated.
func (b *MethodBuilder) Deprecated() *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.Deprecated = true
	return b
}

// Errors documents errors the method may return.
func (b *MethodBuilder) Errors(errs ...discover.Error) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.Errors = append(b.meta.Errors, errs...)
	return b
}

// Links documents links to other methods.
func (b *MethodBuilder) Links(links ...discover.Link) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.Links = append(b.meta.Links, links...)
	return b
}

// Servers lists servers specific to this method.
func (b *MethodBuilder) Servers(servers ...discover.Server) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.Servers = append(b.meta.Servers, servers...)
	return b
}

// ExternalDocs links external documentation.
func (b *MethodBuilder) ExternalDocs(url, description string) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.ExternalDocs = &discover.ExternalDocs{URL: url, Description: description}
	return b
}

// Examples sets explicit example pairings.
func (b *MethodBuilder) Examples(examples ...discover.ExamplePairing) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.Examples = append(b.meta.Examples, examples...)
	return b
}

// Security requires the given scopes of scheme. Calling it for several
// schemes lets a caller satisfy any one of them.
func (b *MethodBuilder) Security(scheme string, scopes ...string) *MethodBuilder {
	if b.err != nil {
		return b
	}
	if scheme == "" {
		b.err = errors.New("security scheme name must not be empty")
		return b
	}
	if b.meta.Security == nil {
		b.meta.Security = make(map[string][]string)
	}
	if scopes == nil {
		scopes = []string{}
	}
	b.meta.Security[scheme] = append(b.meta.Security[scheme], scopes...)
	return b
}

// ParamStructure restricts how params may be passed.
func (b *MethodBuilder) ParamStructure(ps discover.ParamStructure) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.ParamStructure = ps
	return b
}

// Params names the handler arguments that follow an optional context.
func (b *MethodBuilder) Params(names ...string) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.ParamNames = append(b.meta.ParamNames, names...)
	return b
}

// ParamDoc documents a parameter.
func (b *MethodBuilder) ParamDoc(name, doc string) *MethodBuilder {
	if b.err != nil {
		return b
	}
	if b.meta.ParamDocs == nil {
		b.meta.ParamDocs = make(map[string]string)
	}
	b.meta.ParamDocs[name] = doc
	return b
}

// Returns documents the result.
func (b *MethodBuilder) Returns(doc string) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.ResultDoc = doc
	return b
}

// Default sets the value used when a parameter is omitted. Parameters with
// a default are optional.
func (b *MethodBuilder) Default(name string, value any) *MethodBuilder {
	if b.err != nil {
		return b
	}
	if b.meta.Defaults == nil {
		b.meta.Defaults = make(map[string]any)
	}
	b.meta.Defaults[name] = value
	return b
}

// Depends fills a parameter from the named call dependency.
func (b *MethodBuilder) Depends(name, dependency string) *MethodBuilder {
	if b.err != nil {
		return b
	}
	if b.meta.Depends == nil {
		b.meta.Depends = make(map[string]string)
	}
	b.meta.Depends[name] = dependency
	return b
}

// ValidateParams enables schema validation of params before decoding.
// Invalid params result in an InvalidParams error listing the violations.
func (b *MethodBuilder) ValidateParams() *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.meta.ValidateParams = true
	return b
}

// Handler sets the handler and registers the method.
// Handler signature must be one of:
//   - func([ctx context.Context,] in T) (R, error) with T a struct
//   - func([ctx context.Context,] a A, b B, ...) (R, error) with Params names
//
// The result may also be R alone, error alone or nothing.
func (b *MethodBuilder) Handler(fn any) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.err = b.registry.Register(b.name, fn, b.meta)
	return b
}

// Err returns the first error encountered while building.
func (b *MethodBuilder) Err() error {
	return b.err
}
