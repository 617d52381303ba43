package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-processor/internal/logger"
)

// DefaultServerName is announced when ServerInfo.Name is empty
const DefaultServerName = "Invoice Processor Agent"

// ServerInfo describes the running service
type ServerInfo struct {
	Name     string
	Version  string
	Provider string
	Model    string
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

func (i ServerInfo) withDefaults() ServerInfo {
	if i.Name == "" {
		i.Name = DefaultServerName
	}
	return i
}

// Server handles HTTP requests for invoice processing
type Server struct {
	service    *Service
	basicAuth  BasicAuth
	info       ServerInfo
	mux        *http.ServeMux
	handler    http.Handler
	httpServer *http.Server
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth, info ServerInfo) *Server {
	return NewServerWithMux(service, basicAuth, info, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, info ServerInfo, mux *http.ServeMux) *Server {
	info = info.withDefaults()
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		info:      info,
		mux:       mux,
	}
	s.registerRoutes()
	s.handler = s.requestID(s.logRequests(s.corsMiddleware(s.mux)))
	return s
}

// authenticate checks basic auth credentials and returns the user name
func (s *Server) authenticate(r *http.Request) (string, bool) {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return "", true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return "", false
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.basicAuth.Password)) == 1
	return username, userOK && passOK
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := s.authenticate(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Invoice Processor"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized", "")
			return
		}
		if username != "" {
			r = r.WithContext(context.WithValue(r.Context(), logger.UsernameKey, username))
		}
		next(w, r)
	}
}

// corsMiddleware adds CORS headers to every response and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Mcp-Session-Id")
	w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, Mcp-Session-Id")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// requestID tags each request with an ID taken from X-Request-ID or generated
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses (MCP) working through the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// logRequests logs every completed request at a level matching its status
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		attrs := []any{
			"status", rec.status,
			"method", r.Method,
			"path", r.URL.Path,
			"latency_ms", time.Since(start).Milliseconds(),
		}
		log := logger.WithContext(r.Context())
		switch {
		case rec.status >= 500:
			log.Error("Request completed", attrs...)
		case rec.status >= 400:
			log.Warn("Request completed", attrs...)
		default:
			log.Info("Request completed", attrs...)
		}
	})
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	// Unauthenticated discovery endpoints
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /.well-known/agent.json", s.handleAgentCard)

	s.mux.HandleFunc("GET /{$}", s.requireAuth(s.handleInfo))
	s.mux.HandleFunc("POST /process", s.requireAuth(s.handleProcess))
	s.mux.HandleFunc("POST /a2a", s.requireAuth(s.handleA2A))

	mcpHandler := NewMCPHTTPHandler(NewMCPServer(s.service, s.info))
	s.mux.Handle("/mcp", s.requireAuth(mcpHandler.ServeHTTP))

	// History (most specific paths first)
	s.mux.HandleFunc("GET /api/invoices/{id}/file", s.requireAuth(s.handleGetInvoiceFile))
	s.mux.HandleFunc("GET /api/invoices/{id}/export", s.requireAuth(s.handleExportInvoice))
	s.mux.HandleFunc("GET /api/invoices/{id}", s.requireAuth(s.handleGetInvoice))
	s.mux.HandleFunc("DELETE /api/invoices/{id}", s.requireAuth(s.handleDeleteInvoice))
	s.mux.HandleFunc("GET /api/invoices", s.requireAuth(s.handleListInvoices))
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a server started with Start
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
