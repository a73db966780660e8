package server

import (
	"net/http"

	"github.com/casualjim/aviary/pkg/slogx"
	json "github.com/goccy/go-json"
)

const (
	msgProvidersFailed  = "Failed to retrieve providers"
	msgProviderNotFound = "provider not found"
	msgModelNotFound    = "model not found"
	msgInternal         = "internal server error"
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /providers", s.listProviders)
	mux.HandleFunc("GET /providers/{id}", s.getProvider)
	mux.HandleFunc("GET /providers/{id}/models/{model}", s.getModel)
	mux.HandleFunc("GET /health", s.health)
	if s.metrics != nil {
		mux.Handle("GET "+s.cfg.Metrics.Path, s.metrics.Handler())
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		if route, ok := r.Context().Value(routeKey{}).(*string); ok {
			*route = r.Pattern
		}
	})
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	s.metrics.ProviderRequest()
	s.writeJSON(w, r, http.StatusOK, s.catalog.All(), msgProvidersFailed)
}

func (s *Server) getProvider(w http.ResponseWriter, r *http.Request) {
	p, ok := s.catalog.ByID(r.PathValue("id"))
	if !ok {
		s.writeJSON(w, r, http.StatusNotFound, errorBody{msgProviderNotFound}, msgInternal)
		return
	}
	s.writeJSON(w, r, http.StatusOK, p, msgProvidersFailed)
}

func (s *Server) getModel(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("id")
	if _, ok := s.catalog.ByID(providerID); !ok {
		s.writeJSON(w, r, http.StatusNotFound, errorBody{msgProviderNotFound}, msgInternal)
		return
	}
	m, ok := s.catalog.Model(providerID, r.PathValue("model"))
	if !ok {
		s.writeJSON(w, r, http.StatusNotFound, errorBody{msgModelNotFound}, msgInternal)
		return
	}
	s.writeJSON(w, r, http.StatusOK, m, msgInternal)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

// writeJSON encodes v completely before writing anything, so a failure
// produces a clean error response and never a partial body.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any, failure string) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "encoding response", slogx.Error(err), slogx.RequestID(RequestID(r.Context())))
		code = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody{failure})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
