package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OPENRPC_"

// LoadEnv loads .env files into the process environment. Variables that are
// already set win. With no files it loads ./.env when present.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		err := godotenv.Load()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

type envVar struct {
	name  string
	apply func(c *Config, v string) error
}

var envVars = []envVar{
	{"TITLE", func(c *Config, v string) error { c.API.Title = v; return nil }},
	{"VERSION", func(c *Config, v string) error { c.API.Version = v; return nil }},
	{"DEBUG", func(c *Config, v string) error { return setBool(&c.Debug, v) }},
	{"UNCAUGHT_ERROR_CODE", func(c *Config, v string) error { return setInt(&c.UncaughtErrorCode, v) }},
	{"BATCH_CONCURRENCY", func(c *Config, v string) error { return setInt(&c.BatchConcurrency, v) }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = v; return nil }},
	{"TRANSPORT", func(c *Config, v string) error { c.Transport.Kind = v; return nil }},
	{"ADDR", func(c *Config, v string) error { c.Transport.Addr = v; return nil }},
	{"PATH", func(c *Config, v string) error { c.Transport.Path = v; return nil }},
	{"CORS_ORIGINS", func(c *Config, v string) error { c.Transport.CORSOrigins = splitList(v); return nil }},
	{"TIMEOUT", func(c *Config, v string) error { return c.Limits.Timeout.parse(v) }},
	{"RATE", func(c *Config, v string) error { return setInt(&c.Limits.Rate, v) }},
	{"BURST", func(c *Config, v string) error { return setInt(&c.Limits.Burst, v) }},
	{"AUTH_SECRET", func(c *Config, v string) error { c.Auth.Secret = v; return nil }},
	{"AUTH_ISSUER", func(c *Config, v string) error { c.Auth.Issuer = v; return nil }},
	{"AUTH_AUDIENCE", func(c *Config, v string) error { c.Auth.Audience = v; return nil }},
}

// ApplyEnv overrides fields from OPENRPC_* variables, for example
// OPENRPC_ADDR, OPENRPC_DEBUG or OPENRPC_AUTH_SECRET.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		name := EnvPrefix + ev.name
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := ev.apply(c, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
