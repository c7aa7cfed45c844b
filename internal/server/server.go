// Package server provides the HTTP API for the proposal, knowledge and sales agents.
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/propoto-agents/internal/agents"
	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/gamma"
	"github.com/jonathan/propoto-agents/internal/logging"
	"github.com/jonathan/propoto-agents/internal/proposal"
	"github.com/jonathan/propoto-agents/internal/server/middleware"
	"github.com/jonathan/propoto-agents/internal/server/ratelimit"
	"github.com/jonathan/propoto-agents/internal/telemetry"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request identifier in both directions.
const RequestIDHeader = "X-Request-ID"

// ProposalGenerator runs the proposal pipeline.
type ProposalGenerator interface {
	Generate(ctx context.Context, req proposal.Request) (*proposal.Response, error)
}

// KnowledgeIngester analyzes a URL into the knowledge base.
type KnowledgeIngester interface {
	Ingest(ctx context.Context, url string) (*agents.KnowledgeResponse, error)
}

// LeadFinder discovers sales leads for a prompt.
type LeadFinder interface {
	FindLeads(ctx context.Context, prompt string) (*agents.SalesResponse, error)
}

// ThemeLister lists presentation themes.
type ThemeLister interface {
	Enabled() bool
	ListThemes(ctx context.Context) []gamma.Theme
}

// Config holds server configuration
type Config struct {
	Port                int
	ServiceKey          string
	CORSOrigins         []string
	PresentationEnabled bool
	// Providers reports which external integrations have credentials, for GET /health.
	Providers map[string]bool
}

// Deps are the collaborators behind the routes. Nil agents answer with a configuration error.
type Deps struct {
	Proposals ProposalGenerator
	Knowledge KnowledgeIngester
	Sales     LeadFinder
	Themes    ThemeLister
	Limiter   ratelimit.Backend
	Tokens    middleware.TokenValidator
	Logger    *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	cfg        Config
	deps       Deps
	limiter    ratelimit.Backend
	logger     *zap.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		limiter: deps.Limiter,
		logger:  deps.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}

	auth := middleware.Auth(cfg.ServiceKey, deps.Tokens, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", telemetry.Handler())

	mux.HandleFunc("GET /agents/proposal/models", s.handleListModels)
	mux.HandleFunc("GET /agents/proposal/templates", s.handleListTemplates)
	mux.Handle("POST /agents/proposal/generate", auth(http.HandlerFunc(s.handleGenerateProposal)))
	mux.Handle("POST /agents/knowledge/ingest", auth(http.HandlerFunc(s.handleIngestKnowledge)))
	mux.Handle("POST /agents/sales/find_leads", auth(http.HandlerFunc(s.handleFindLeads)))
	mux.Handle("GET /agents/gamma/themes", auth(http.HandlerFunc(s.handleListThemes)))

	s.handler = s.withRequestID(s.withLogging(s.withCORS(s.withRateLimit(mux))))

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Covers the presentation poll loop (150s), model latency and one credit fallback.
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.stopLimiter()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.stopLimiter()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) stopLimiter() {
	if stopper, ok := s.limiter.(interface{ Stop() }); ok {
		stopper.Stop()
	}
}

// withRequestID tags the request with the caller's X-Request-ID or a fresh one and echoes it.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.With(r.Context(), s.logger).Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}

// withCORS allows the configured origins. A "*" entry allows any origin.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key, X-Request-ID")
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.cfg.CORSOrigins, "*") || slices.Contains(s.cfg.CORSOrigins, origin)
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.limiter.Allow(r.Context(), s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			s.errorResponse(w, r, apierr.RateLimited(retryAfterSeconds(info)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// retryAfterSeconds rounds up to whole seconds. Denials without a known window (blacklisted
// clients) advise a minute.
func retryAfterSeconds(info ratelimit.Info) int {
	if info.RetryAfter <= 0 {
		return 60
	}
	return int(math.Ceil(info.RetryAfter.Seconds()))
}
