package server

import (
	"context"
	"slices"

	"github.com/felixgeelhaar/openrpc-go/middleware"
)

// Grants maps security scheme names to the scopes a caller holds.
type Grants map[string][]string

// Satisfies reports whether g meets required. Any one required scheme
// suffices, provided every scope listed for it is granted. Empty
// requirements are always satisfied.
func (g Grants) Satisfies(required map[string][]string) bool {
	if len(required) == 0 {
		return true
	}
	for scheme, scopes := range required {
		granted, ok := g[scheme]
		if !ok {
			continue
		}
		if containsAll(granted, scopes) {
			return true
		}
	}
	return false
}

func containsAll(granted, scopes []string) bool {
	for _, s := range scopes {
		if !slices.Contains(granted, s) {
			return false
		}
	}
	return true
}

// SecurityFunc resolves the grants of the current caller from the call
// context and dependencies.
type SecurityFunc func(ctx context.Context, deps map[string]any) (Grants, error)

// grants resolves caller grants: explicit call grants first, then the
// server SecurityFunc, then the scopes of an authenticated identity.
func (s *Server) grants(ctx context.Context, c *callState) (Grants, error) {
	if c.grants != nil {
		return c.grants, nil
	}
	if s.securityFunc != nil {
		return s.securityFunc(ctx, c.deps)
	}
	if id := middleware.IdentityFromContext(ctx); id != nil {
		return Grants(id.Scopes), nil
	}
	return nil, nil
}
