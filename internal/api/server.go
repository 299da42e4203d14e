// Package api exposes the chat engine over HTTP.
//
// Endpoints:
//
//	POST /api/chat          streaming chat (Vercel data-stream framing)
//	POST /api/chat/request  non-streaming chat (JSON)
//	GET  /health            liveness probe
//	GET  /ready             readiness probe (database ping)
//	GET  /data/...          static files from the data directory
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: recovery, request ID, logging, rate limiting
//   - chat.go: chat endpoints
//   - stream.go: Vercel data-stream framing
//   - health.go: health check endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/lorekit/lore/internal/log"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow header attacks.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because streamed answers can take minutes
	// on local models.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout is the keep-alive timeout between requests.
	IdleTimeout = 120 * time.Second

	// requestsPerSecond and burstSize configure the server-wide limiter.
	requestsPerSecond = 10
	burstSize         = 20
)

// Server is the HTTP server for the chat API.
type Server struct {
	mux     *http.ServeMux
	limiter *rate.Limiter
	logger  log.Logger

	health *HealthHandler
	chat   *ChatHandler
}

// NewServer creates a server with all routes registered. dataDir, when
// non-empty, is served read-only under /data/ so source-node URLs resolve.
func NewServer(engine ChatEngine, pool *pgxpool.Pool, dataDir string, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize),
		logger:  logger,
		health:  NewHealthHandler(pool, logger),
		chat:    NewChatHandler(engine, logger),
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	if dataDir != "" {
		mux.Handle("GET /data/", http.StripPrefix("/data/", http.FileServer(http.Dir(dataDir))))
	}

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → request ID → logging → rate limit → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger),
		rateLimitMiddleware(s.limiter),
	)
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
