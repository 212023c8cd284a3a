package rpc

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kratoschain/kratos/log"
)

// Server is a JSON-RPC HTTP server that dispatches requests to a KratosAPI,
// wrapped in the shared CORS/auth/logging/compression/rate-limit middleware
// chain.
type Server struct {
	api     *KratosAPI
	mux     *http.ServeMux
	log     *log.Logger
	limiter *RPCRateLimiter
}

// NewServer creates a new JSON-RPC server bound to backend. The server
// enforces per-client, per-method rate limits in addition to the coarse
// connection-level limit applied by the middleware chain.
func NewServer(backend Backend) *Server {
	s := &Server{
		api:     NewKratosAPI(backend),
		mux:     http.NewServeMux(),
		log:     log.Default().Module("rpc"),
		limiter: NewRPCRateLimiter(DefaultRPCRateLimitConfig()),
	}
	s.mux.HandleFunc("/", s.handleRPC)
	return s
}

// RateLimiter returns the server's per-method rate limiter, exposed so
// callers can read its GlobalStats; system_health does not report them.
func (s *Server) RateLimiter() *RPCRateLimiter {
	return s.limiter
}

// Handler returns the HTTP handler for the server, wrapped in the default
// middleware chain (CORS, rate limiting, request logging, compression).
func (s *Server) Handler() http.Handler {
	logStore := NewLogStore()
	return MiddlewareChain(s.mux,
		CORSMiddleware(DefaultCORSConfig()),
		RateLimitMiddleware(RateLimitConfig{RequestsPerSecond: 50}),
		LoggingMiddleware(logStore),
		CompressionMiddleware(),
	)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, nil, ErrCodeParse, "failed to read request body")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, ErrCodeParse, "invalid JSON")
		return
	}

	clientIP := extractClientIP(r)
	if !s.limiter.Allow(clientIP, req.Method) {
		writeError(w, req.ID, ErrCodeRateLimited, "rate limit exceeded for method "+req.Method)
		return
	}

	start := time.Now()
	resp := s.api.HandleRequest(&req)
	s.limiter.RecordLatency(req.Method, time.Since(start).Nanoseconds())
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	resp := &Response{
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message},
		ID:      id,
	}
	writeJSON(w, resp)
}
