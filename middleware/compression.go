package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// Compression builds the gzip response stage. Responses are only compressed
// when the client accepts gzip and the body is large enough to benefit.
func Compression(enabled bool) (Middleware, bool) {
	if !enabled {
		return nil, false
	}
	return func(next http.Handler) http.Handler {
		return gzhttp.GzipHandler(next)
	}, true
}
