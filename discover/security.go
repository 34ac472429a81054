package discover

import (
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/felixgeelhaar/openrpc-go/schema"
)

// SecurityScheme is a security scheme listed under
// components.x-securitySchemes.
type SecurityScheme interface {
	SchemeType() string
}

// OAuth2FlowType names an OAuth 2.0 flow.
type OAuth2FlowType string

const (
	AuthorizationCode OAuth2FlowType = "authorizationCode"
	ClientCredentials OAuth2FlowType = "clientCredentials"
	Password          OAuth2FlowType = "password"
)

// OAuth2Flow describes one OAuth 2.0 flow and the scopes it grants.
type OAuth2Flow struct {
	Type             OAuth2FlowType    `json:"type"`
	AuthorizationURL string            `json:"authorizationUrl,omitempty"`
	RefreshURL       string            `json:"refreshUrl,omitempty"`
	TokenURL         string            `json:"tokenUrl,omitempty"`
	Scopes           map[string]string `json:"scopes"`
}

// OAuth2 is an OAuth 2.0 security scheme.
type OAuth2 struct {
	Flows       []OAuth2Flow
	Description string
}

// BearerAuth is a bearer token security scheme.
type BearerAuth struct {
	In          string
	Name        string
	Description string
	Scopes      map[string]string
}

// APIKeyAuth is an API key security scheme.
type APIKeyAuth struct {
	In          string
	Name        string
	Description string
	Scopes      map[string]string
}

func (OAuth2) SchemeType() string     { return "oauth2" }
func (BearerAuth) SchemeType() string { return "bearer" }
func (APIKeyAuth) SchemeType() string { return "apikey" }

// MarshalJSON implements json.Marshaler.
func (s OAuth2) MarshalJSON() ([]byte, error) {
	flows := s.Flows
	if flows == nil {
		flows = []OAuth2Flow{}
	}
	return json.Marshal(struct {
		Type        string       `json:"type"`
		Flows       []OAuth2Flow `json:"flows"`
		Description string       `json:"description,omitempty"`
	}{s.SchemeType(), flows, s.Description})
}

// MarshalJSON implements json.Marshaler. The key is sent in the
// Authorization header unless configured otherwise.
func (s BearerAuth) MarshalJSON() ([]byte, error) {
	return marshalKeyScheme(s.SchemeType(), s.In, s.Name, "Authorization", s.Description, s.Scopes)
}

// MarshalJSON implements json.Marshaler. The key is sent in the api_key
// header unless configured otherwise.
func (s APIKeyAuth) MarshalJSON() ([]byte, error) {
	return marshalKeyScheme(s.SchemeType(), s.In, s.Name, "api_key", s.Description, s.Scopes)
}

func marshalKeyScheme(typ, in, name, defaultName, description string, scopes map[string]string) ([]byte, error) {
	if in == "" {
		in = "header"
	}
	if name == "" {
		name = defaultName
	}
	if scopes == nil {
		scopes = map[string]string{}
	}
	return json.Marshal(struct {
		Type        string            `json:"type"`
		In          string            `json:"in"`
		Name        string            `json:"name"`
		Description string            `json:"description,omitempty"`
		Scopes      map[string]string `json:"scopes"`
	}{typ, in, name, description, scopes})
}

// OAuth2FlowFromConfig describes the flow an oauth2 client configuration
// takes part in. Scope descriptions come from scopeDocs; configured scopes
// without a description get an empty one.
func OAuth2FlowFromConfig(flowType OAuth2FlowType, cfg *oauth2.Config, scopeDocs map[string]string) OAuth2Flow {
	flow := OAuth2Flow{
		Type:     flowType,
		TokenURL: cfg.Endpoint.TokenURL,
		Scopes:   mergeScopes(cfg.Scopes, scopeDocs),
	}
	if flowType == AuthorizationCode {
		flow.AuthorizationURL = cfg.Endpoint.AuthURL
	}
	return flow
}

// OAuth2FlowFromClientCredentials describes a client credentials flow.
func OAuth2FlowFromClientCredentials(cfg *clientcredentials.Config, scopeDocs map[string]string) OAuth2Flow {
	return OAuth2Flow{
		Type:     ClientCredentials,
		TokenURL: cfg.TokenURL,
		Scopes:   mergeScopes(cfg.Scopes, scopeDocs),
	}
}

func mergeScopes(names []string, docs map[string]string) map[string]string {
	scopes := make(map[string]string, len(names)+len(docs))
	for _, name := range names {
		scopes[name] = docs[name]
	}
	for name, doc := range docs {
		scopes[name] = doc
	}
	return scopes
}

// DecodeSecurityScheme decodes a scheme by its type member.
func DecodeSecurityScheme(data []byte) (SecurityScheme, error) {
	var raw struct {
		Type        string            `json:"type"`
		Flows       []OAuth2Flow      `json:"flows"`
		In          string            `json:"in"`
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Scopes      map[string]string `json:"scopes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	switch raw.Type {
	case "oauth2":
		return OAuth2{Flows: raw.Flows, Description: raw.Description}, nil
	case "bearer":
		return BearerAuth{In: raw.In, Name: raw.Name, Description: raw.Description, Scopes: raw.Scopes}, nil
	case "apikey":
		return APIKeyAuth{In: raw.In, Name: raw.Name, Description: raw.Description, Scopes: raw.Scopes}, nil
	default:
		return nil, fmt.Errorf("unknown security scheme type %q", raw.Type)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Components) UnmarshalJSON(data []byte) error {
	var raw struct {
		Schemas          map[string]*schema.Schema  `json:"schemas"`
		XSecuritySchemes map[string]json.RawMessage `json:"x-securitySchemes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Schemas = raw.Schemas
	c.XSecuritySchemes = nil
	if len(raw.XSecuritySchemes) > 0 {
		c.XSecuritySchemes = make(map[string]SecurityScheme, len(raw.XSecuritySchemes))
		for name, msg := range raw.XSecuritySchemes {
			scheme, err := DecodeSecurityScheme(msg)
			if err != nil {
				return fmt.Errorf("security scheme %q: %w", name, err)
			}
			c.XSecuritySchemes[name] = scheme
		}
	}
	return nil
}
