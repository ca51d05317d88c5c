package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	library "github.com/goliatone/go-library-client"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use a
// double underscore: LIBRARY_STORAGE__DSN sets storage.dsn.
const EnvPrefix = "LIBRARY_"

const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config is everything libctl needs to talk to the backend
type Config struct {
	Mode             string        `koanf:"mode"`
	ProductionOrigin string        `koanf:"production_origin"`
	DevProxyOrigin   string        `koanf:"dev_proxy_origin"`
	Timeout          time.Duration `koanf:"timeout"`
	Verbose          bool          `koanf:"verbose"`
	Storage          StorageConfig `koanf:"storage"`
	Session          SessionConfig `koanf:"session"`
	Proxy            ProxyConfig   `koanf:"proxy"`
}

type StorageConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// SessionConfig holds the opt in local token checks. The backend stays the
// authority either way.
type SessionConfig struct {
	CheckExpiry  bool          `koanf:"check_expiry"`
	ExpiryLeeway time.Duration `koanf:"expiry_leeway"`
	JWKSURL      string        `koanf:"jwks_url"`
	JWKSRefresh  time.Duration `koanf:"jwks_refresh"`
}

// ProxyConfig configures the development proxy
type ProxyConfig struct {
	Listen string `koanf:"listen"`
	Target string `koanf:"target"`
}

// LoadOptions lists the optional sources. Later sources win: defaults,
// file, .env, environment, flags.
type LoadOptions struct {
	File    string
	EnvFile string
	Flags   *pflag.FlagSet
	// FlagKeys maps flag names to config keys. Flags not listed are ignored.
	FlagKeys map[string]string
}

// Defaults returns the built in configuration
func Defaults() map[string]any {
	return map[string]any{
		"mode":                  defaultMode,
		"production_origin":     library.DefaultProductionOrigin,
		"dev_proxy_origin":      library.DefaultDevProxyOrigin,
		"timeout":               "10s",
		"verbose":               false,
		"storage.driver":        StorageSQLite,
		"storage.dsn":           defaultDSN(),
		"session.check_expiry":  false,
		"session.expiry_leeway": "0s",
		"session.jwks_url":      "",
		"session.jwks_refresh":  "1h",
		"proxy.listen":          ":5173",
		"proxy.target":          "http://localhost:8080",
	}
}

// Load reads the configuration from every source in opts
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load config file %s: %w", opts.File, err)
			}
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := opts.FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.Required, validation.In(library.ModeProduction, library.ModeDevelopment)),
		validation.Field(&c.ProductionOrigin, validation.Required, is.URL),
		validation.Field(&c.DevProxyOrigin, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Storage),
		validation.Field(&c.Session),
		validation.Field(&c.Proxy),
	)
}

func (s StorageConfig) Validate() error {
	var dsnRules []validation.Rule
	if s.Driver == StorageSQLite {
		dsnRules = append(dsnRules, validation.Required)
	}
	return validation.ValidateStruct(&s,
		validation.Field(&s.Driver, validation.Required, validation.In(StorageMemory, StorageSQLite)),
		validation.Field(&s.DSN, dsnRules...),
	)
}

func (s SessionConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ExpiryLeeway, validation.Min(time.Duration(0))),
		validation.Field(&s.JWKSURL, is.URL),
	)
}

func (p ProxyConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Listen, validation.Required),
		validation.Field(&p.Target, validation.Required, is.URL),
	)
}

// Gateway maps the config onto the request gateway settings
func (c Config) Gateway() library.GatewayConfig {
	return library.GatewayConfig{
		Mode:             c.Mode,
		ProductionOrigin: c.ProductionOrigin,
		DevProxyOrigin:   c.DevProxyOrigin,
		Timeout:          c.Timeout,
	}
}

// envKey turns LIBRARY_SESSION__CHECK_EXPIRY into session.check_expiry
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func defaultDSN() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "libctl", "session.db")
}
