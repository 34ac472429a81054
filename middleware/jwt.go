package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// JWTConfig configures JWTAuthenticator.
type JWTConfig struct {
	// Key verifies signatures: []byte for HMAC, a public key otherwise.
	Key any
	// Algorithms accepted in the token header. Defaults to HS256.
	Algorithms []jose.SignatureAlgorithm
	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string
	// Scheme is the security scheme the token scopes are granted under.
	// Defaults to "bearer".
	Scheme string
	// Leeway tolerates clock skew. Defaults to jwt.DefaultLeeway.
	Leeway time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

type scopeClaims struct {
	Name   string   `json:"name,omitempty"`
	Scope  string   `json:"scope,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// JWTAuthenticator verifies signed JWT bearer tokens. The subject becomes
// the identity id, and the space separated "scope" claim or the "scopes"
// array claim becomes the identity scopes under cfg.Scheme.
func JWTAuthenticator(cfg JWTConfig) Authenticator {
	if len(cfg.Algorithms) == 0 {
		cfg.Algorithms = []jose.SignatureAlgorithm{jose.HS256}
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "bearer"
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = jwt.DefaultLeeway
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(ctx context.Context, _ *protocol.Request) (*Identity, error) {
		raw := BearerToken(ctx)
		if raw == "" {
			return nil, nil
		}

		tok, err := jwt.ParseSigned(raw, cfg.Algorithms)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		var (
			std    jwt.Claims
			custom scopeClaims
		)
		if err := tok.Claims(cfg.Key, &std, &custom); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}

		expected := jwt.Expected{Issuer: cfg.Issuer, Time: cfg.Now()}
		if cfg.Audience != "" {
			expected.AnyAudience = jwt.Audience{cfg.Audience}
		}
		if err := std.ValidateWithLeeway(expected, cfg.Leeway); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}

		scopes := append(strings.Fields(custom.Scope), custom.Scopes...)
		if scopes == nil {
			scopes = []string{}
		}
		return &Identity{
			ID:     std.Subject,
			Name:   custom.Name,
			Scopes: map[string][]string{cfg.Scheme: scopes},
			Metadata: map[string]any{
				"issuer":   std.Issuer,
				"audience": []string(std.Audience),
			},
		}, nil
	}
}
