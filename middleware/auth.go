package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	ID   string
	Name string

	// Scopes holds the granted scopes per security scheme name. The server
	// checks method security requirements against it.
	Scopes map[string][]string

	// Metadata carries authenticator specific details such as token claims.
	Metadata map[string]any
}

type identityKey struct{}

// IdentityFromContext returns the identity set by Auth, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// ContextWithIdentity attaches identity to ctx.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// Authenticator resolves the caller of a request. It returns a nil
// identity and a nil error when the request carries no credentials, and
// an error when credentials are present but invalid.
type Authenticator func(ctx context.Context, req *protocol.Request) (*Identity, error)

// AuthOption configures Auth.
type AuthOption func(*authGate)

type authGate struct {
	authenticate Authenticator
	logger       Logger
	skip         map[string]struct{}
	message      string
	optional     bool
}

// WithAuthLogger logs rejected and accepted calls to l.
func WithAuthLogger(l Logger) AuthOption {
	return func(g *authGate) { g.logger = l }
}

// WithAuthSkipMethods lets the named methods through without credentials.
// rpc.discover is always let through.
func WithAuthSkipMethods(methods ...string) AuthOption {
	return func(g *authGate) {
		for _, m := range methods {
			g.skip[m] = struct{}{}
		}
	}
}

// WithAuthErrorMessage replaces the message of the unauthorized error.
func WithAuthErrorMessage(msg string) AuthOption {
	return func(g *authGate) { g.message = msg }
}

// WithAuthOptional admits calls without credentials. They carry no
// identity, so methods with security requirements still refuse them.
func WithAuthOptional() AuthOption {
	return func(g *authGate) { g.optional = true }
}

// Auth authenticates every call except skipped methods and attaches the
// identity to the context. Rejections use protocol.CodeUnauthorized; a
// *protocol.Error returned by the authenticator is passed through as is.
func Auth(authenticator Authenticator, opts ...AuthOption) Middleware {
	g := &authGate{
		authenticate: authenticator,
		skip:         map[string]struct{}{protocol.MethodDiscover: {}},
		message:      "authentication required",
	}
	for _, opt := range opts {
		opt(g)
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
			if _, ok := g.skip[req.Method]; ok {
				return next(ctx, req)
			}
			identity, err := g.admit(ctx, req)
			if err != nil {
				return nil, err
			}
			if identity != nil {
				ctx = ContextWithIdentity(ctx, identity)
			}
			return next(ctx, req)
		}
	}
}

func (g *authGate) admit(ctx context.Context, req *protocol.Request) (*Identity, error) {
	identity, err := g.authenticate(ctx, req)
	switch {
	case err != nil:
		g.warn("rejected credentials", req, F("error", err.Error()))
		var rpcErr *protocol.Error
		if errors.As(err, &rpcErr) {
			return nil, rpcErr
		}
		return nil, protocol.NewUnauthorized(g.message)
	case identity == nil && g.optional:
		return nil, nil
	case identity == nil:
		g.warn("missing credentials", req)
		return nil, protocol.NewUnauthorized(g.message)
	}
	if g.logger != nil {
		g.logger.Debug("authenticated", F("method", req.Method), F("identity", identity.ID))
	}
	return identity, nil
}

func (g *authGate) warn(msg string, req *protocol.Request, fields ...Field) {
	if g.logger == nil {
		return
	}
	g.logger.Warn(msg, append([]Field{F("method", req.Method)}, fields...)...)
}

// APIKeyAuthenticator looks the key up in the named request metadata
// entry, usually an HTTP header. lookup returns nil for unknown keys.
func APIKeyAuthenticator(header string, lookup func(key string) *Identity) Authenticator {
	return func(ctx context.Context, _ *protocol.Request) (*Identity, error) {
		key := protocol.GetRequestMeta(ctx, header)
		if key == "" {
			return nil, nil
		}
		return lookup(key), nil
	}
}

// BearerToken returns the token of an "Authorization: Bearer" metadata
// entry, or "". The scheme name is matched case-insensitively.
func BearerToken(ctx context.Context) string {
	scheme, token, ok := strings.Cut(protocol.GetRequestMeta(ctx, "Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// BearerTokenAuthenticator resolves bearer tokens with lookup, which
// returns nil for unknown tokens.
func BearerTokenAuthenticator(lookup func(token string) *Identity) Authenticator {
	return func(ctx context.Context, _ *protocol.Request) (*Identity, error) {
		token := BearerToken(ctx)
		if token == "" {
			return nil, nil
		}
		return lookup(token), nil
	}
}

// StaticAPIKeys is a lookup over a fixed key table.
func StaticAPIKeys(keys map[string]*Identity) func(string) *Identity {
	return func(key string) *Identity { return keys[key] }
}

// StaticTokens is a lookup over a fixed token table.
func StaticTokens(tokens map[string]*Identity) func(string) *Identity {
	return func(token string) *Identity { return tokens[token] }
}

// ChainAuthenticators returns the first identity any authenticator finds.
// An error from any of them ends the search.
func ChainAuthenticators(authenticators ...Authenticator) Authenticator {
	return func(ctx context.Context, req *protocol.Request) (*Identity, error) {
		for _, authenticate := range authenticators {
			if id, err := authenticate(ctx, req); err != nil || id != nil {
				return id, err
			}
		}
		return nil, nil
	}
}
