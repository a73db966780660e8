// Package middleware builds the cross-cutting HTTP behaviors wrapped around
// the catalog handlers: rate limiting, CORS, security headers and response
// compression.
//
// Every behavior is built from static configuration exactly once, at startup,
// and each one can be switched off without affecting the others. Compose
// assembles the enabled behaviors into a Pipeline in a fixed order:
//
//	compression( rate-limit( cors( security-headers( handler ))))
//
// Rate limiting is the outermost gate so rejected requests never reach the
// catalog. Compression wraps everything so it transforms the final body.
package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/fogfish/opts"
)

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Stage names, as reported by Pipeline.Stages.
const (
	StageCompression     = "compression"
	StageRateLimit       = "rate-limit"
	StageCORS            = "cors"
	StageSecurityHeaders = "security-headers"
)

// Config is the static configuration of every middleware stage.
type Config struct {
	CORS            CORSConfig            `mapstructure:"cors"`
	RateLimit       RateLimitConfig       `mapstructure:"rate_limit"`
	SecurityHeaders SecurityHeadersConfig `mapstructure:"security_headers"`
	Compression     bool                  `mapstructure:"-"`
}

type settings struct {
	logger   *slog.Logger
	onReject func(*http.Request)
	now      func() time.Time
}

func newSettings(options []opts.Option[settings]) settings {
	s := settings{
		logger: slog.Default(),
		now:    time.Now,
	}
	if err := opts.Apply(&s, options); err != nil {
		panic(err)
	}
	return s
}

var (
	// WithLogger sets the logger used while building stages.
	WithLogger = opts.ForName[settings, *slog.Logger]("logger")

	// OnReject registers a callback invoked for every request the rate limiter rejects.
	OnReject = opts.ForName[settings, func(*http.Request)]("onReject")
)

// WithClock overrides the time source of the rate limiter.
func WithClock(now func() time.Time) opts.Option[settings] {
	return opts.Type[settings](func(s *settings) error {
		if now != nil {
			s.now = now
		}
		return nil
	})
}

type stage struct {
	name string
	wrap Middleware
}

// Pipeline is the ordered chain of enabled middleware stages.
type Pipeline struct {
	stages  []stage
	limiter *Limiter
}

// Compose builds the pipeline for cfg. Disabled stages are left out.
func Compose(cfg Config, options ...opts.Option[settings]) Pipeline {
	var p Pipeline

	if mw, ok := Compression(cfg.Compression); ok {
		p.stages = append(p.stages, stage{StageCompression, mw})
	}
	if mw, limiter, ok := RateLimit(cfg.RateLimit, options...); ok {
		p.stages = append(p.stages, stage{StageRateLimit, mw})
		p.limiter = limiter
	}
	if mw, ok := CORS(cfg.CORS, options...); ok {
		p.stages = append(p.stages, stage{StageCORS, mw})
	}
	if mw, ok := SecurityHeaders(cfg.SecurityHeaders); ok {
		p.stages = append(p.stages, stage{StageSecurityHeaders, mw})
	}
	return p
}

// Stages returns the installed stage names, outermost first.
func (p Pipeline) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.name)
	}
	return names
}

// Has reports whether the named stage is installed.
func (p Pipeline) Has(name string) bool {
	return slices.Contains(p.Stages(), name)
}

// Limiter returns the rate limiter of the pipeline, or nil when rate limiting
// is disabled.
func (p Pipeline) Limiter() *Limiter {
	return p.limiter
}

// Then wraps h with every installed stage.
func (p Pipeline) Then(h http.Handler) http.Handler {
	for i := len(p.stages) - 1; i >= 0; i-- {
		h = p.stages[i].wrap(h)
	}
	return h
}

// Chain applies the middlewares to h so that the first one is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
