package middleware

import "time"

// StackConfig selects the middleware placed around every method call.
// Zero values leave the matching guard out.
type StackConfig struct {
	// Logger receives call logs and guard rejections. Nil disables call
	// logging.
	Logger Logger
	// Timeout bounds each call.
	Timeout time.Duration
	// MaxParamsSize rejects calls whose raw params exceed it, in bytes.
	MaxParamsSize int64
	// Guards are appended after the built-in ones, in order.
	Guards []Middleware
}

// NewStack assembles the call pipeline described by cfg. Recovery and
// request ids always run first so every later layer, logging included,
// sees a correlated request and a panic never escapes the pipeline.
func NewStack(cfg StackConfig) []Middleware {
	stack := []Middleware{Recover(), RequestID()}
	if cfg.Logger != nil {
		stack = append(stack, Logging(cfg.Logger))
	}
	if cfg.Timeout > 0 {
		stack = append(stack, Timeout(cfg.Timeout))
	}
	if cfg.MaxParamsSize > 0 {
		var opts []SizeLimitOption
		if cfg.Logger != nil {
			opts = append(opts, WithSizeLimitLogger(cfg.Logger))
		}
		stack = append(stack, SizeLimit(cfg.MaxParamsSize, opts...))
	}
	return append(stack, cfg.Guards...)
}

// DefaultStack returns recovery, request ids and call logging.
func DefaultStack(logger Logger) []Middleware {
	return NewStack(StackConfig{Logger: logger})
}

// DefaultStackWithTimeout is DefaultStack with a per-call deadline.
func DefaultStackWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return NewStack(StackConfig{Logger: logger, Timeout: timeout})
}
