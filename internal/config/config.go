// Package config loads endpointhub settings from defaults, an optional config
// file, ENDPOINTHUB_* environment variables and bound command line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. ENDPOINTHUB_SERVER_ADDR.
const EnvPrefix = "ENDPOINTHUB"

// Config is the resolved runtime configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	API        APIConfig        `mapstructure:"api"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Accounting AccountingConfig `mapstructure:"accounting"`
	Social     SocialConfig     `mapstructure:"social"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TLS             TLSConfig     `mapstructure:"tls"`
	// CORSOrigins lists browser origins allowed to call the API; "*" allows
	// any. Empty disables CORS handling.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type APIConfig struct {
	Prefix       string `mapstructure:"prefix"`
	MetadataPath string `mapstructure:"metadata_path"`
	RoleHeader   string `mapstructure:"role_header"`
	DefaultRole  string `mapstructure:"default_role"`
}

type RateLimitConfig struct {
	DefaultPerMinute int           `mapstructure:"default_per_minute"`
	Window           time.Duration `mapstructure:"window"`
}

// AccountingConfig bounds how many minute buckets are kept. Zero keeps all.
type AccountingConfig struct {
	Retention time.Duration `mapstructure:"retention"`
}

type SocialConfig struct {
	GitHubBaseURL string        `mapstructure:"github_base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// LoadResult reports where the configuration came from.
type LoadResult struct {
	Config     Config
	ConfigFile string
}

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config error in field %q: %s", e.Field, e.Message)
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		API: APIConfig{
			Prefix:       "/api",
			MetadataPath: "/metadata",
			RoleHeader:   "X-User-Role",
			DefaultRole:  "user",
		},
		RateLimit: RateLimitConfig{
			DefaultPerMinute: 60,
			Window:           time.Minute,
		},
		Social: SocialConfig{
			GitHubBaseURL: "https://api.github.com",
			Timeout:       5 * time.Second,
		},
	}
}

// New returns a viper instance carrying the defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.tls.cert_file", d.Server.TLS.CertFile)
	v.SetDefault("server.tls.key_file", d.Server.TLS.KeyFile)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("api.prefix", d.API.Prefix)
	v.SetDefault("api.metadata_path", d.API.MetadataPath)
	v.SetDefault("api.role_header", d.API.RoleHeader)
	v.SetDefault("api.default_role", d.API.DefaultRole)
	v.SetDefault("ratelimit.default_per_minute", d.RateLimit.DefaultPerMinute)
	v.SetDefault("ratelimit.window", d.RateLimit.Window)
	v.SetDefault("accounting.retention", d.Accounting.Retention)
	v.SetDefault("social.github_base_url", d.Social.GitHubBaseURL)
	v.SetDefault("social.timeout", d.Social.Timeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// flagKeys maps command line flag names onto configuration keys.
var flagKeys = map[string]string{
	"addr":       "server.addr",
	"log-level":  "log.level",
	"log-format": "log.format",
	"tls-cert":   "server.tls.cert_file",
	"tls-key":    "server.tls.key_file",
	"api-prefix": "api.prefix",
	"rate-limit": "ratelimit.default_per_minute",
	"cors":       "server.cors_origins",
}

// BindFlags binds whichever of the known flags exist in fs. Flags only win
// over the file and environment when set explicitly.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads configFile when given, otherwise an endpointhub.{yaml,json,toml}
// from the working directory if one exists, and unmarshals the result.
func Load(v *viper.Viper, configFile string) (*LoadResult, error) {
	if v == nil {
		v = New()
	}
	if configFile = strings.TrimSpace(configFile); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("endpointhub")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, ConfigFile: v.ConfigFileUsed()}, nil
}

func (c *Config) normalize() {
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	origins := c.Server.CORSOrigins[:0]
	for _, origin := range c.Server.CORSOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.Server.CORSOrigins = origins
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.API.Prefix = "/" + strings.Trim(strings.TrimSpace(c.API.Prefix), "/")
	c.API.MetadataPath = "/" + strings.Trim(strings.TrimSpace(c.API.MetadataPath), "/")
	c.API.RoleHeader = strings.TrimSpace(c.API.RoleHeader)
	c.API.DefaultRole = strings.TrimSpace(c.API.DefaultRole)
	c.Social.GitHubBaseURL = strings.TrimRight(strings.TrimSpace(c.Social.GitHubBaseURL), "/")
}

// MetadataRoute is the full path of the introspection endpoint.
func (c Config) MetadataRoute() string {
	if c.API.Prefix == "/" {
		return c.API.MetadataPath
	}
	return c.API.Prefix + c.API.MetadataPath
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return &ValidationError{Field: "server.addr", Message: "listen address is required"}
	}
	if c.Server.ShutdownTimeout < 0 {
		return &ValidationError{Field: "server.shutdown_timeout", Message: "must not be negative"}
	}
	if (c.Server.TLS.CertFile == "") != (c.Server.TLS.KeyFile == "") {
		return &ValidationError{Field: "server.tls", Message: "cert_file and key_file must be provided together"}
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return &ValidationError{Field: "log.format", Message: fmt.Sprintf("unsupported format %q", c.Log.Format)}
	}
	if c.API.MetadataPath == "/" {
		return &ValidationError{Field: "api.metadata_path", Message: "must name a path segment"}
	}
	if c.RateLimit.DefaultPerMinute <= 0 {
		return &ValidationError{Field: "ratelimit.default_per_minute", Message: "must be positive"}
	}
	if c.RateLimit.Window <= 0 {
		return &ValidationError{Field: "ratelimit.window", Message: "must be positive"}
	}
	if c.Accounting.Retention < 0 {
		return &ValidationError{Field: "accounting.retention", Message: "must not be negative"}
	}
	if c.Social.Timeout <= 0 {
		return &ValidationError{Field: "social.timeout", Message: "must be positive"}
	}
	if c.Social.GitHubBaseURL != "" {
		parsed, err := url.Parse(c.Social.GitHubBaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return &ValidationError{Field: "social.github_base_url", Message: "must be an absolute URL"}
		}
	}
	return nil
}
