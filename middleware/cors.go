package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/fogfish/opts"
	"github.com/rs/cors"
	"golang.org/x/net/http/httpguts"
)

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAgeSeconds  int      `mapstructure:"max_age_seconds"`
}

const anyOrigin = "*"

// CORS builds the CORS stage. It reports false when CORS is disabled.
//
// When the origins contain "*" any origin is allowed. Otherwise only the
// configured origins of the form scheme://host[:port] are. Entries that can
// not be parsed are dropped and logged at debug level.
func CORS(cfg CORSConfig, options ...opts.Option[settings]) (Middleware, bool) {
	if !cfg.Enabled {
		return nil, false
	}

	c := cors.New(corsOptions(cfg, newSettings(options).logger))
	return c.Handler, true
}

func corsOptions(cfg CORSConfig, logger *slog.Logger) cors.Options {
	o := cors.Options{
		MaxAge: cfg.MaxAgeSeconds,
	}

	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == anyOrigin {
			o.AllowedOrigins = []string{anyOrigin}
			break
		}
		if !validOrigin(origin) {
			logger.Debug("dropping invalid CORS origin", slog.String("origin", origin))
			continue
		}
		o.AllowedOrigins = append(o.AllowedOrigins, strings.TrimSuffix(origin, "/"))
	}
	if o.AllowedOrigins == nil {
		// an empty list would make rs/cors allow everything
		o.AllowOriginFunc = func(string) bool { return false }
	}

	o.AllowedMethods = filterTokens(cfg.AllowedMethods, strings.ToUpper, func(method string) {
		logger.Debug("dropping invalid CORS method", slog.String("method", method))
	})
	o.AllowedHeaders = filterTokens(cfg.AllowedHeaders, nil, func(header string) {
		logger.Debug("dropping invalid CORS header", slog.String("header", header))
	})

	// rs/cors treats an empty list as its defaults. A configured list with no
	// valid entry must allow nothing.
	if err := cfg.Validate(); err != nil {
		logger.Warn("refusing all cross-origin requests", slog.String("reason", err.Error()))
		o.AllowedOrigins = nil
		o.AllowOriginFunc = func(string) bool { return false }
	}

	return o
}

// ErrNoValidEntries is returned by CORSConfig.Validate when a configured
// method or header list has no usable entry left.
var ErrNoValidEntries = errors.New("no valid entries")

// Validate reports a method or header list that was configured but where
// every entry is invalid. Empty lists are valid.
func (c CORSConfig) Validate() error {
	if len(c.AllowedMethods) > 0 && len(filterTokens(c.AllowedMethods, nil, nil)) == 0 {
		return fmt.Errorf("CORS allowed methods %q: %w", c.AllowedMethods, ErrNoValidEntries)
	}
	if len(c.AllowedHeaders) > 0 && len(filterTokens(c.AllowedHeaders, nil, nil)) == 0 {
		return fmt.Errorf("CORS allowed headers %q: %w", c.AllowedHeaders, ErrNoValidEntries)
	}
	return nil
}

// filterTokens keeps the trimmed values that are valid HTTP tokens.
func filterTokens(values []string, normalize func(string) string, dropped func(string)) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if !httpguts.ValidHeaderFieldName(v) {
			if dropped != nil {
				dropped(v)
			}
			continue
		}
		if normalize != nil {
			v = normalize(v)
		}
		out = append(out, v)
	}
	return out
}

func validOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return false
	}
	return u.Path == "" || u.Path == "/"
}
