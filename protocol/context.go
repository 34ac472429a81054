package protocol

import (
	"context"
	"maps"
	"strings"
)

type requestMetaKey struct{}

// RequestMeta carries transport metadata, such as HTTP headers, alongside
// a request. Lookups ignore key case.
type RequestMeta map[string]string

// Get returns the value for key, ignoring case.
func (m RequestMeta) Get(key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// ContextWithRequestMeta returns a new context with the request metadata attached.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the request metadata from the context, or
// nil.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// GetRequestMeta returns a metadata value from the context, ignoring key
// case. It returns "" when absent.
func GetRequestMeta(ctx context.Context, key string) string {
	return RequestMetaFromContext(ctx).Get(key)
}

// SetRequestMeta returns a context whose metadata has key set. The
// metadata of ctx is not modified.
func SetRequestMeta(ctx context.Context, key, value string) context.Context {
	meta := maps.Clone(RequestMetaFromContext(ctx))
	if meta == nil {
		meta = make(RequestMeta, 1)
	}
	meta[key] = value
	return ContextWithRequestMeta(ctx, meta)
}
