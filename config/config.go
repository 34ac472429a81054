package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/openrpc-go/discover"
)

// Transport kinds.
const (
	TransportStdio     = "stdio"
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// Config is the file form of a server configuration.
type Config struct {
	API     discover.Info     `yaml:"info" toml:"info" json:"info"`
	Servers []discover.Server `yaml:"servers" toml:"servers" json:"servers"`

	Debug             bool `yaml:"debug" toml:"debug" json:"debug"`
	UncaughtErrorCode int  `yaml:"uncaught_error_code" toml:"uncaught_error_code" json:"uncaught_error_code"`
	BatchConcurrency  int  `yaml:"batch_concurrency" toml:"batch_concurrency" json:"batch_concurrency"`

	Log       LogConfig               `yaml:"log" toml:"log" json:"log"`
	Transport TransportConfig         `yaml:"transport" toml:"transport" json:"transport"`
	Limits    LimitsConfig            `yaml:"limits" toml:"limits" json:"limits"`
	Auth      AuthConfig              `yaml:"auth" toml:"auth" json:"auth"`
	Security  map[string]SchemeConfig `yaml:"security" toml:"security" json:"security"`
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"` // json or console
}

// TransportConfig describes how the server is exposed.
type TransportConfig struct {
	Kind            string   `yaml:"kind" toml:"kind" json:"kind"`
	Addr            string   `yaml:"addr" toml:"addr" json:"addr"`
	Path            string   `yaml:"path" toml:"path" json:"path"`
	ReadTimeout     Duration `yaml:"read_timeout" toml:"read_timeout" json:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxBodySize     int64    `yaml:"max_body_size" toml:"max_body_size" json:"max_body_size"`
	CORSOrigins     []string `yaml:"cors_origins" toml:"cors_origins" json:"cors_origins"`
}

// LimitsConfig configures the per-call guard middleware.
type LimitsConfig struct {
	Timeout        Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
	MaxRequestSize int64    `yaml:"max_request_size" toml:"max_request_size" json:"max_request_size"`
	Rate           int      `yaml:"rate" toml:"rate" json:"rate"`
	Burst          int      `yaml:"burst" toml:"burst" json:"burst"`
	RateBy         string   `yaml:"rate_by" toml:"rate_by" json:"rate_by"` // global, method or identity
}

// AuthConfig enables JWT bearer authentication. The secret usually comes
// from OPENRPC_AUTH_SECRET rather than the file.
type AuthConfig struct {
	Secret      string   `yaml:"secret" toml:"secret" json:"secret"`
	Issuer      string   `yaml:"issuer" toml:"issuer" json:"issuer"`
	Audience    string   `yaml:"audience" toml:"audience" json:"audience"`
	Scheme      string   `yaml:"scheme" toml:"scheme" json:"scheme"`
	SkipMethods []string `yaml:"skip_methods" toml:"skip_methods" json:"skip_methods"`
}

// SchemeConfig describes one security scheme published in the discovery
// document.
type SchemeConfig struct {
	Type        string            `yaml:"type" toml:"type" json:"type"` // oauth2, bearer or apikey
	Description string            `yaml:"description" toml:"description" json:"description"`
	Scopes      map[string]string `yaml:"scopes" toml:"scopes" json:"scopes"`

	// oauth2
	Flow     string `yaml:"flow" toml:"flow" json:"flow"`
	AuthURL  string `yaml:"auth_url" toml:"auth_url" json:"auth_url"`
	TokenURL string `yaml:"token_url" toml:"token_url" json:"token_url"`

	// bearer and apikey
	In   string `yaml:"in" toml:"in" json:"in"`
	Name string `yaml:"name" toml:"name" json:"name"`
}

// ErrUnsupportedFormat is returned by Load for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		API: discover.Info{Title: "RPC Server", Version: "0.1.0"},
		Log: LogConfig{Level: "info", Format: "json"},
		Transport: TransportConfig{
			Kind: TransportStdio,
			Addr: ":8080",
		},
		Limits: LimitsConfig{RateBy: "global"},
	}
}

// Load reads the file at path over the defaults and applies OPENRPC_*
// environment overrides. The format follows the extension: .yaml/.yml,
// .toml, or .json/.json5. An empty path yields the defaults plus the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(data, filepath.Ext(path), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses data in the format named by ext into cfg. Fields absent
// from data keep their current values.
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		return yaml.Unmarshal(data, cfg)
	case "toml":
		return toml.Unmarshal(data, cfg)
	case "json", "json5":
		return json5.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Validate reports configuration values that cannot be turned into options.
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case TransportStdio, TransportHTTP, TransportWebSocket:
	default:
		return fmt.Errorf("unknown transport kind %q", c.Transport.Kind)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	switch c.Limits.RateBy {
	case "", "global", "method", "identity":
	default:
		return fmt.Errorf("unknown rate_by %q", c.Limits.RateBy)
	}
	if c.Limits.Rate < 0 || c.Limits.Burst < 0 {
		return errors.New("rate limits must not be negative")
	}
	if c.BatchConcurrency < 0 {
		return errors.New("batch_concurrency must not be negative")
	}
	if _, err := c.SecuritySchemes(); err != nil {
		return err
	}
	return nil
}
