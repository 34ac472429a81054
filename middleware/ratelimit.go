package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// MessageRateLimited is the error message for rejected calls.
const MessageRateLimited = "rate limit exceeded"

// KeyFunc derives the rate limit bucket of a call.
type KeyFunc func(ctx context.Context, req *protocol.Request) string

// RateLimitOption configures the rate limiter.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	keyFunc KeyFunc
	logger  Logger
}

// WithRateLimitKeyFunc sets the function that picks the bucket of a call,
// allowing per-client or per-method limits.
func WithRateLimitKeyFunc(fn KeyFunc) RateLimitOption {
	return func(o *rateLimitConfig) {
		o.keyFunc = fn
	}
}

// WithRateLimitLogger sets the logger for rate limit events.
func WithRateLimitLogger(l Logger) RateLimitOption {
	return func(o *rateLimitConfig) {
		o.logger = l
	}
}

// RateLimit returns middleware that limits the call rate with a token
// bucket of rate calls per second and the given burst. Rejected calls fail
// with protocol.CodeRateLimited.
func RateLimit(rate int, burst int, opts ...RateLimitOption) Middleware {
	cfg := &rateLimitConfig{
		keyFunc: func(context.Context, *protocol.Request) string { return "global" },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
			key := cfg.keyFunc(ctx, req)
			if !limiter.Allow(ctx, key) {
				if cfg.logger != nil {
					cfg.logger.Warn("rate limit exceeded",
						F("method", req.Method),
						F("key", key),
					)
				}
				return nil, protocol.NewRateLimited(MessageRateLimited)
			}
			return next(ctx, req)
		}
	}
}

// RateLimitByMethod returns rate limiting middleware with a bucket per method.
func RateLimitByMethod(rate int, burst int, opts ...RateLimitOption) Middleware {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(func(_ context.Context, req *protocol.Request) string {
			return req.Method
		}),
	}, opts...)
	return RateLimit(rate, burst, allOpts...)
}

// RateLimitByMeta returns rate limiting middleware with a bucket per value
// of the given request metadata key, such as a client address header.
func RateLimitByMeta(rate int, burst int, key string, opts ...RateLimitOption) Middleware {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(func(ctx context.Context, _ *protocol.Request) string {
			return protocol.GetRequestMeta(ctx, key)
		}),
	}, opts...)
	return RateLimit(rate, burst, allOpts...)
}

// RateLimitByIdentity returns rate limiting middleware with a bucket per
// authenticated identity. It must run after Auth.
func RateLimitByIdentity(rate int, burst int, opts ...RateLimitOption) Middleware {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(func(ctx context.Context, _ *protocol.Request) string {
			if id := IdentityFromContext(ctx); id != nil {
				return id.ID
			}
			return "anonymous"
		}),
	}, opts...)
	return RateLimit(rate, burst, allOpts...)
}
