// Package config loads the aviary server configuration.
//
// Values are layered, lowest precedence first: built-in defaults, an optional
// config file, a .env file and finally environment variables prefixed with
// AVIARY_. Nested keys are separated by a double underscore, so
// AVIARY_SERVER__PORT=9090 sets server.port.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/casualjim/aviary/middleware"
	"github.com/fogfish/opts"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AVIARY"

// EnvConfigFile names the environment variable that points at a config file.
const EnvConfigFile = EnvPrefix + "_CONFIG"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	Compression            bool   `mapstructure:"compression"`
	TimeoutSeconds         int    `mapstructure:"timeout_seconds"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// Timeout is the per-request read/write timeout.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds how long in-flight requests may take to drain.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSONFormat bool   `mapstructure:"json_format"`
	ShowTarget bool   `mapstructure:"show_target"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type SecurityConfig struct {
	CORS            middleware.CORSConfig            `mapstructure:"cors"`
	RateLimit       middleware.RateLimitConfig       `mapstructure:"rate_limit"`
	SecurityHeaders middleware.SecurityHeadersConfig `mapstructure:"security_headers"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8080,
			Compression:            true,
			TimeoutSeconds:         30,
			ShutdownTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Security: SecurityConfig{
			CORS: middleware.CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
				MaxAgeSeconds:  3600,
			},
			RateLimit: middleware.RateLimitConfig{
				Enabled:           true,
				RequestsPerPeriod: 100,
				PeriodSeconds:     60,
				Algorithm:         middleware.AlgorithmWindow,
			},
			SecurityHeaders: middleware.SecurityHeadersConfig{
				Enabled:            true,
				HSTS:               true,
				ContentTypeOptions: true,
				FrameOptions:       true,
				XSSProtection:      true,
			},
		},
	}
}

type loader struct {
	file     string
	dotenv   []string
	searchIn []string
}

var (
	// WithFile loads the given config file instead of searching for one.
	WithFile = opts.ForName[loader, string]("file")

	// WithSearchPaths sets the directories searched for config.{toml,yaml,json}.
	WithSearchPaths = opts.ForName[loader, []string]("searchIn")
)

// WithDotenv sets the .env files to load. Missing files are skipped.
func WithDotenv(files ...string) opts.Option[loader] {
	return opts.Type[loader](func(l *loader) error {
		l.dotenv = files
		return nil
	})
}

// Load reads the configuration from every source. It does not validate it.
func Load(options ...opts.Option[loader]) (Config, error) {
	l := loader{
		dotenv:   []string{".env"},
		searchIn: []string{"."},
	}
	if err := opts.Apply(&l, options); err != nil {
		return Config{}, err
	}

	for _, file := range l.dotenv {
		// values already present in the environment win over .env
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	file := l.file
	if file == "" {
		file = os.Getenv(EnvConfigFile)
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		for _, dir := range l.searchIn {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	return cfg, nil
}

// MustLoad loads and validates the configuration, panicking on failure.
func MustLoad(options ...opts.Option[loader]) Config {
	cfg, err := Load(options...)
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

// setDefaults registers every key so that environment variables can
// override keys that are absent from the config file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.compression", d.Server.Compression)
	v.SetDefault("server.timeout_seconds", d.Server.TimeoutSeconds)
	v.SetDefault("server.shutdown_timeout_seconds", d.Server.ShutdownTimeoutSeconds)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.json_format", d.Logging.JSONFormat)
	v.SetDefault("logging.show_target", d.Logging.ShowTarget)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	cors := d.Security.CORS
	v.SetDefault("security.cors.enabled", cors.Enabled)
	v.SetDefault("security.cors.allowed_origins", cors.AllowedOrigins)
	v.SetDefault("security.cors.allowed_methods", cors.AllowedMethods)
	v.SetDefault("security.cors.allowed_headers", cors.AllowedHeaders)
	v.SetDefault("security.cors.max_age_seconds", cors.MaxAgeSeconds)

	rl := d.Security.RateLimit
	v.SetDefault("security.rate_limit.enabled", rl.Enabled)
	v.SetDefault("security.rate_limit.requests_per_period", rl.RequestsPerPeriod)
	v.SetDefault("security.rate_limit.period_seconds", rl.PeriodSeconds)
	v.SetDefault("security.rate_limit.algorithm", string(rl.Algorithm))
	v.SetDefault("security.rate_limit.trust_forwarded_for", rl.TrustForwardedFor)

	sh := d.Security.SecurityHeaders
	v.SetDefault("security.security_headers.enabled", sh.Enabled)
	v.SetDefault("security.security_headers.hsts", sh.HSTS)
	v.SetDefault("security.security_headers.content_type_options", sh.ContentTypeOptions)
	v.SetDefault("security.security_headers.frame_options", sh.FrameOptions)
	v.SetDefault("security.security_headers.xss_protection", sh.XSSProtection)
}

var logLevels = map[string]slog.Level{
	"trace": slog.LevelDebug - 4,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

var reservedPaths = []string{"/providers", "/health"}

// Validate reports the first problem found in the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port must be between 1 and 65535, got %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: server timeout can not be 0", ErrInvalidConfig)
	}
	if c.Server.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("%w: shutdown timeout can not be negative", ErrInvalidConfig)
	}
	if _, ok := logLevels[strings.ToLower(c.Logging.Level)]; !ok {
		return fmt.Errorf("%w: invalid log level %q, valid levels: trace, debug, info, warn, error", ErrInvalidConfig, c.Logging.Level)
	}

	if c.Metrics.Enabled {
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("%w: metrics path %q must start with /", ErrInvalidConfig, c.Metrics.Path)
		}
		for _, reserved := range reservedPaths {
			if c.Metrics.Path == reserved || strings.HasPrefix(c.Metrics.Path, reserved+"/") {
				return fmt.Errorf("%w: metrics path %q collides with %s", ErrInvalidConfig, c.Metrics.Path, reserved)
			}
		}
	}

	rl := c.Security.RateLimit
	if rl.Enabled {
		if rl.RequestsPerPeriod <= 0 || rl.PeriodSeconds <= 0 {
			return fmt.Errorf("%w: rate limit needs a positive request count and period", ErrInvalidConfig)
		}
		switch rl.Algorithm {
		case "", middleware.AlgorithmWindow, middleware.AlgorithmToken:
		default:
			return fmt.Errorf("%w: unknown rate limit algorithm %q", ErrInvalidConfig, rl.Algorithm)
		}
	}
	if c.Security.CORS.Enabled {
		if err := c.Security.CORS.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if c.Security.CORS.MaxAgeSeconds < 0 {
		return fmt.Errorf("%w: CORS max age can not be negative", ErrInvalidConfig)
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// SlogLevel maps the configured level. Unknown levels fall back to info.
func (c Config) SlogLevel() slog.Level {
	if lvl, ok := logLevels[strings.ToLower(c.Logging.Level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// Middleware returns the middleware configuration.
func (c Config) Middleware() middleware.Config {
	return middleware.Config{
		CORS:            c.Security.CORS,
		RateLimit:       c.Security.RateLimit,
		SecurityHeaders: c.Security.SecurityHeaders,
		Compression:     c.Server.Compression,
	}
}
