package api

import (
	"errors"
	"net/http"

	"github.com/kztmrk/kaiwa/internal/agent"
	"github.com/kztmrk/kaiwa/internal/chat"
	"github.com/kztmrk/kaiwa/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Responder   agent.Responder // Required
	History     *chat.History   // Required
	CORSOrigins []string        // Allowed origins for CORS
	TrustProxy  bool            // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int             // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Responder == nil {
		return nil, errors.New("responder is required")
	}
	if cfg.History == nil {
		return nil, errors.New("history is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{
		responder: cfg.Responder,
		history:   cfg.History,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("POST /api/v1/chat/stream", ch.stream)
	mux.HandleFunc("GET /api/v1/history", ch.getHistory)
	mux.HandleFunc("POST /api/v1/reset", ch.reset)
	mux.HandleFunc("GET /api/v1/agents", ch.listAgents)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newIPLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID precedes Logging so request_id is available in log attributes.
	// CORS precedes RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// A top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
