package config

const (
	defaultURL        = "http://localhost:8000"
	defaultAuthHeader = "x-chroma-token"
	defaultTimeout    = "60s"

	// DefaultTenant and DefaultDatabase are the names a fresh server
	// bootstraps with.
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			URL:        defaultURL,
			AuthHeader: defaultAuthHeader,
			Timeout:    defaultTimeout,
		},
		Scope: ScopeConfig{
			Tenant:   DefaultTenant,
			Database: DefaultDatabase,
		},
	}
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Server.URL == "" {
		cfg.Server.URL = defaults.Server.URL
	}
	if cfg.Server.AuthHeader == "" {
		cfg.Server.AuthHeader = defaults.Server.AuthHeader
	}
	if cfg.Server.Timeout == "" {
		cfg.Server.Timeout = defaults.Server.Timeout
	}

	if cfg.Scope.Tenant == "" {
		cfg.Scope.Tenant = defaults.Scope.Tenant
	}
	if cfg.Scope.Database == "" {
		cfg.Scope.Database = defaults.Scope.Database
	}
}
