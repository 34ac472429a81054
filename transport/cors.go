package transport

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls which browser origins may call the HTTP transport.
type CORSConfig struct {
	// AllowOrigins lists permitted origins. "*" permits any origin and
	// "https://*.example.com" permits any subdomain of example.com.
	AllowOrigins []string

	// AllowMethods defaults to POST and OPTIONS.
	AllowMethods []string

	// AllowHeaders defaults to Content-Type, Authorization, X-Request-Id
	// and X-API-Key.
	AllowHeaders []string

	ExposeHeaders    []string
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Default: 86400.
	MaxAge int
}

const defaultCORSMaxAge = 86400

var (
	defaultCORSMethods = []string{http.MethodPost, http.MethodOptions}
	defaultCORSHeaders = []string{"Content-Type", "Authorization", "X-Request-Id", "X-API-Key"}
)

// DefaultCORSConfig permits every origin. It is meant for local use with
// browser based explorers.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: defaultCORSMethods,
		AllowHeaders: defaultCORSHeaders,
		MaxAge:       defaultCORSMaxAge,
	}
}

// corsPolicy is a CORSConfig with defaults applied and headers joined.
type corsPolicy struct {
	any         bool
	exact       map[string]struct{}
	suffixes    []originSuffix
	methods     string
	headers     string
	expose      string
	maxAge      string
	credentials bool
}

type originSuffix struct {
	scheme string
	suffix string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		exact:       make(map[string]struct{}),
		methods:     strings.Join(orDefault(cfg.AllowMethods, defaultCORSMethods), ", "),
		headers:     strings.Join(orDefault(cfg.AllowHeaders, defaultCORSHeaders), ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
	}
	maxAge := cfg.MaxAge
	if maxAge == 0 {
		maxAge = defaultCORSMaxAge
	}
	if maxAge > 0 {
		p.maxAge = strconv.Itoa(maxAge)
	}
	for _, o := range cfg.AllowOrigins {
		switch {
		case o == "*":
			p.any = true
		case strings.Contains(o, "://*."):
			scheme, host, _ := strings.Cut(o, "://*")
			p.suffixes = append(p.suffixes, originSuffix{scheme: scheme + "://", suffix: host})
		default:
			p.exact[o] = struct{}{}
		}
	}
	return p
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

// origin returns the Access-Control-Allow-Origin value for a request
// origin, or "" when the origin is not permitted. A wildcard policy echoes
// the origin when credentials are allowed, since browsers reject "*" then.
func (p *corsPolicy) origin(origin string) string {
	if p.any {
		if p.credentials && origin != "" {
			return origin
		}
		return "*"
	}
	if origin == "" {
		return ""
	}
	if _, ok := p.exact[origin]; ok {
		return origin
	}
	for _, s := range p.suffixes {
		host, ok := strings.CutPrefix(origin, s.scheme)
		if ok && strings.HasSuffix(host, s.suffix) && len(host) > len(s.suffix) {
			return origin
		}
	}
	return ""
}

func (p *corsPolicy) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allow := p.origin(r.Header.Get("Origin"))
		if allow == "" {
			next.ServeHTTP(w, r)
			return
		}

		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", allow)
		if allow != "*" {
			hdr.Add("Vary", "Origin")
		}
		if p.credentials {
			hdr.Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			hdr.Set("Access-Control-Allow-Methods", p.methods)
			hdr.Set("Access-Control-Allow-Headers", p.headers)
			if p.maxAge != "" {
				hdr.Set("Access-Control-Max-Age", p.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if p.expose != "" {
			hdr.Set("Access-Control-Expose-Headers", p.expose)
		}
		next.ServeHTTP(w, r)
	})
}

// CORSHandler wraps next with the CORS policy described by cfg.
// Preflight requests from permitted origins are answered with 204 and
// never reach next.
func CORSHandler(cfg CORSConfig, next http.Handler) http.Handler {
	return newCORSPolicy(cfg).wrap(next)
}

// WithCORS enables CORS on the HTTP transport.
func WithCORS(cfg CORSConfig) HTTPOption {
	return func(h *HTTP) {
		h.corsConfig = &cfg
	}
}

// WithDefaultCORS enables CORS with DefaultCORSConfig.
func WithDefaultCORS() HTTPOption {
	return WithCORS(DefaultCORSConfig())
}
