package config

import (
	"fmt"
	"time"
)

// Config is the khroma client configuration stored as config.toml. The TOML
// layout uses sections for logical grouping.
type Config struct {
	Version int          `toml:"version" mapstructure:"version"`
	Server  ServerConfig `toml:"server" mapstructure:"server"`
	Scope   ScopeConfig  `toml:"scope" mapstructure:"scope"`
	Log     LogConfig    `toml:"log" mapstructure:"log"`
}

// ServerConfig describes how to reach the vector database.
type ServerConfig struct {
	// URL is the base URL of the server, e.g. "http://localhost:8000".
	URL string `toml:"url,omitempty" mapstructure:"url"`

	// Token is sent on every request when non-empty.
	Token string `toml:"token,omitempty" mapstructure:"token"`

	// AuthHeader names the header carrying Token. "Authorization" switches
	// to a Bearer credential.
	AuthHeader string `toml:"auth_header,omitempty" mapstructure:"auth_header"`

	// Timeout is a Go duration string applied to the default HTTP client.
	Timeout string `toml:"timeout,omitempty" mapstructure:"timeout"`

	// Headers are extra static headers attached to every request.
	Headers map[string]string `toml:"headers,omitempty" mapstructure:"headers"`
}

// ScopeConfig selects the tenant and database handles callers start from.
type ScopeConfig struct {
	Tenant   string `toml:"tenant,omitempty" mapstructure:"tenant"`
	Database string `toml:"database,omitempty" mapstructure:"database"`
}

// LogConfig controls the logger built by NewFromConfig.
type LogConfig struct {
	Debug  bool `toml:"debug,omitempty" mapstructure:"debug"`
	JSON   bool `toml:"json,omitempty" mapstructure:"json"`
	Pretty bool `toml:"pretty,omitempty" mapstructure:"pretty"`
}

// TimeoutDuration parses Timeout. An empty value yields zero.
func (s ServerConfig) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing server.timeout %q: %w", s.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("server.timeout cannot be negative: %s", s.Timeout)
	}
	return d, nil
}
