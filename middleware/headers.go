package middleware

import (
	"net/http"
)

// SecurityHeadersConfig toggles the security response headers one by one.
type SecurityHeadersConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	HSTS               bool `mapstructure:"hsts"`
	ContentTypeOptions bool `mapstructure:"content_type_options"`
	FrameOptions       bool `mapstructure:"frame_options"`
	XSSProtection      bool `mapstructure:"xss_protection"`
}

const (
	HeaderHSTS               = "Strict-Transport-Security"
	HeaderContentTypeOptions = "X-Content-Type-Options"
	HeaderFrameOptions       = "X-Frame-Options"
	HeaderXSSProtection      = "X-Xss-Protection"
)

type headerValue struct {
	name, value string
}

// Headers returns the header values the configuration installs.
func (c SecurityHeadersConfig) Headers() http.Header {
	h := http.Header{}
	for _, hv := range c.values() {
		h.Set(hv.name, hv.value)
	}
	return h
}

func (c SecurityHeadersConfig) values() []headerValue {
	if !c.Enabled {
		return nil
	}
	var out []headerValue
	if c.HSTS {
		out = append(out, headerValue{HeaderHSTS, "max-age=31536000; includeSubDomains"})
	}
	if c.ContentTypeOptions {
		out = append(out, headerValue{HeaderContentTypeOptions, "nosniff"})
	}
	if c.FrameOptions {
		out = append(out, headerValue{HeaderFrameOptions, "DENY"})
	}
	if c.XSSProtection {
		out = append(out, headerValue{HeaderXSSProtection, "1; mode=block"})
	}
	return out
}

// SecurityHeaders builds the security headers stage. It reports false when
// the stage is disabled or none of the headers is switched on.
//
// The headers override whatever the wrapped handler set for the same names.
func SecurityHeaders(cfg SecurityHeadersConfig) (Middleware, bool) {
	values := cfg.values()
	if len(values) == 0 {
		return nil, false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &headerWriter{ResponseWriter: w, values: values}
			next.ServeHTTP(sw, r)
			sw.commit()
		})
	}, true
}

// headerWriter sets its headers right before the response header is sent.
type headerWriter struct {
	http.ResponseWriter
	values    []headerValue
	committed bool
}

func (w *headerWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	h := w.ResponseWriter.Header()
	for _, hv := range w.values {
		h.Set(hv.name, hv.value)
	}
}

func (w *headerWriter) WriteHeader(code int) {
	if code >= 100 && code < 200 {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *headerWriter) Flush() {
	w.commit()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *headerWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
