package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// Logger is the interface for structured logging.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logging returns middleware that logs every call. Successful calls are
// logged at info level, failed calls at error level with their code.
func Logging(logger Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
			start := time.Now()

			resp, err := next(ctx, req)

			fields := []Field{
				F("method", req.Method),
				F("duration", time.Since(start)),
			}
			if req.IsNotification() {
				fields = append(fields, F("notification", true))
			} else {
				fields = append(fields, F("id", string(req.ID)))
			}
			if requestID := RequestIDFromContext(ctx); requestID != "" {
				fields = append(fields, F("request_id", requestID))
			}

			var rpcErr *protocol.Error
			switch {
			case errors.As(err, &rpcErr):
				fields = append(fields, F("code", rpcErr.Code), F("error", rpcErr.Message))
				logger.Error("call failed", fields...)
			case err != nil:
				fields = append(fields, F("error", err.Error()))
				logger.Error("call failed", fields...)
			default:
				logger.Info("call completed", fields...)
			}

			return resp, err
		}
	}
}

// NopLogger is a logger that discards all log entries.
type NopLogger struct{}

func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Warn(msg string, fields ...Field)  {}
