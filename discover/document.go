package discover

import "github.com/felixgeelhaar/openrpc-go/schema"

// OpenRPCVersion is the OpenRPC version generated documents declare.
const OpenRPCVersion = "1.2.6"

// MetaSchemaURL locates the OpenRPC meta schema describing Document.
const MetaSchemaURL = "https://raw.githubusercontent.com/open-rpc/meta-schema/master/schema.json"

// Document is an OpenRPC service description.
type Document struct {
	OpenRPC      string        `json:"openrpc"`
	Info         Info          `json:"info"`
	Servers      []Server      `json:"servers,omitempty"`
	Methods      []Method      `json:"methods"`
	Components   *Components   `json:"components,omitempty"`
	ExternalDocs *ExternalDocs `json:"externalDocs,omitempty"`
}

// Info describes the API.
type Info struct {
	Title          string   `json:"title" yaml:"title" toml:"title"`
	Description    string   `json:"description,omitempty" yaml:"description" toml:"description"`
	TermsOfService string   `json:"termsOfService,omitempty" yaml:"terms_of_service" toml:"terms_of_service"`
	Version        string   `json:"version" yaml:"version" toml:"version"`
	Contact        *Contact `json:"contact,omitempty" yaml:"contact" toml:"contact"`
	License        *License `json:"license,omitempty" yaml:"license" toml:"license"`
}

// Contact is the contact information of the API owner.
type Contact struct {
	Name  string `json:"name,omitempty" yaml:"name" toml:"name"`
	URL   string `json:"url,omitempty" yaml:"url" toml:"url"`
	Email string `json:"email,omitempty" yaml:"email" toml:"email"`
}

// License is the license of the API.
type License struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	URL  string `json:"url,omitempty" yaml:"url" toml:"url"`
}

// Server is a location the API is served from.
type Server struct {
	Name        string                    `json:"name" yaml:"name" toml:"name"`
	URL         string                    `json:"url" yaml:"url" toml:"url"`
	Summary     string                    `json:"summary,omitempty" yaml:"summary" toml:"summary"`
	Description string                    `json:"description,omitempty" yaml:"description" toml:"description"`
	Variables   map[string]ServerVariable `json:"variables,omitempty" yaml:"variables" toml:"variables"`
}

// ServerVariable substitutes into a server URL template.
type ServerVariable struct {
	Enum        []string `json:"enum,omitempty" yaml:"enum" toml:"enum"`
	Default     string   `json:"default" yaml:"default" toml:"default"`
	Description string   `json:"description,omitempty" yaml:"description" toml:"description"`
}

// ParamStructure declares how a method expects its params.
type ParamStructure string

const (
	ByName     ParamStructure = "by-name"
	ByPosition ParamStructure = "by-position"
	Either     ParamStructure = "either"
)

// Method describes one callable method.
type Method struct {
	Name           string              `json:"name"`
	Tags           []Tag               `json:"tags,omitempty"`
	Summary        string              `json:"summary,omitempty"`
	Description    string              `json:"description,omitempty"`
	ExternalDocs   *ExternalDocs       `json:"externalDocs,omitempty"`
	Params         []ContentDescriptor `json:"params"`
	Result         *ContentDescriptor  `json:"result,omitempty"`
	Deprecated     bool                `json:"deprecated,omitempty"`
	Servers        []Server            `json:"servers,omitempty"`
	Errors         []Error             `json:"errors,omitempty"`
	Links          []Link              `json:"links,omitempty"`
	ParamStructure ParamStructure      `json:"paramStructure,omitempty"`
	Examples       []ExamplePairing    `json:"examples,omitempty"`
	XSecurity      map[string][]string `json:"x-security,omitempty"`
}

// ContentDescriptor describes a parameter or a result.
type ContentDescriptor struct {
	Name        string         `json:"name"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Required    bool           `json:"required,omitempty"`
	Schema      *schema.Schema `json:"schema"`
	Deprecated  bool           `json:"deprecated,omitempty"`
}

// Tag groups methods.
type Tag struct {
	Name         string        `json:"name"`
	Summary      string        `json:"summary,omitempty"`
	Description  string        `json:"description,omitempty"`
	ExternalDocs *ExternalDocs `json:"externalDocs,omitempty"`
}

// ExternalDocs points at additional documentation.
type ExternalDocs struct {
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
}

// ExamplePairing is an example request/response pair for a method.
type ExamplePairing struct {
	Name        string    `json:"name,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Params      []Example `json:"params"`
	Result      *Example  `json:"result,omitempty"`
}

// Example is an example value. Value is emitted even when nil.
type Example struct {
	Name          string `json:"name,omitempty"`
	Summary       string `json:"summary,omitempty"`
	Description   string `json:"description,omitempty"`
	Value         any    `json:"value"`
	ExternalValue string `json:"externalValue,omitempty"`
}

// Link describes a design-time relation to another method.
type Link struct {
	Name        string         `json:"name"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Method      string         `json:"method,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Server      *Server        `json:"server,omitempty"`
}

// Error is an application error a method may return.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Components holds reusable objects of a document.
type Components struct {
	Schemas          map[string]*schema.Schema `json:"schemas,omitempty"`
	XSecuritySchemes map[string]SecurityScheme `json:"x-securitySchemes,omitempty"`
}
