// Package middleware provides call middleware for JSON-RPC servers.
//
// Middleware wraps the next handler in the chain and runs around every
// method call after the request has been decoded. Batches run the chain
// once per entry.
//
// # Basic Usage
//
//	srv.Use(
//	    middleware.Recover(),
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	)
//
// # Available Middleware
//
//   - Recover: Converts panics into internal errors
//   - RequestID: Injects unique request IDs into the context
//   - Timeout: Enforces call deadlines
//   - Logging: Logs calls and their outcome
//   - Auth: Authenticates callers and attaches an Identity
//   - RateLimit: Token bucket limits per key
//   - SizeLimit: Rejects oversized params
//   - OTel: OpenTelemetry tracing and metrics
//
// # Authentication
//
// JWTAuthenticator verifies signed bearer tokens and grants their scopes,
// which the server checks against method security requirements:
//
//	srv.Use(middleware.Auth(middleware.JWTAuthenticator(middleware.JWTConfig{
//	    Key:    secret,
//	    Issuer: "https://issuer.example.com",
//	})))
//
// # Logging
//
// Logger is a small structured logging interface. NewZerologLogger adapts
// a zerolog.Logger:
//
//	logger := middleware.NewZerologLogger(zerolog.New(os.Stderr).With().Timestamp().Logger())
package middleware
