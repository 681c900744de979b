// Package config loads and persists khroma client configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Configer reads and writes config.toml inside a single directory.
type Configer struct {
	targetPath string
}

// NewConfiger targets dir/config.toml. An empty dir leaves the Configer
// without a target: LoadConfig returns defaults and SaveConfig errors.
func NewConfiger(dir string) (*Configer, error) {
	cfger := &Configer{}
	if dir == "" {
		return cfger, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading config dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config dir %q is not a directory", dir)
	}

	cfger.targetPath = filepath.Join(dir, configFile)
	return cfger, nil
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads config.toml from the target directory. A missing file
// yields NewDefaultConfig(); fields set in the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// SaveConfig persists the configuration to config.toml in the target directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	// 0600: the file may hold a server token.
	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// ParseConfigTOML decodes TOML into a Config without applying defaults.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}

// Validate reports configuration that cannot produce a working client.
func (cfg *Config) Validate() error {
	if cfg.Server.URL == "" {
		return errors.New("server.url is required")
	}
	if _, err := cfg.Server.TimeoutDuration(); err != nil {
		return err
	}
	if cfg.Server.Token != "" && cfg.Server.AuthHeader == "" {
		return errors.New("server.auth_header is required when server.token is set")
	}
	return nil
}
