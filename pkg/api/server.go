package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"

	"github.com/cuemby/whisker/pkg/events"
	"github.com/cuemby/whisker/pkg/log"
	"github.com/cuemby/whisker/pkg/metrics"
	"github.com/cuemby/whisker/pkg/storage"
)

// Options configures the HTTP server
type Options struct {
	Broker  *events.Broker
	Journal storage.Journal // nil disables move history

	Version        string
	AllowedOrigin  string
	HistoryDefault int
	RateLimit      RateLimit
}

// Server serves the whisker HTTP API
type Server struct {
	broker  *events.Broker
	journal storage.Journal

	version        string
	historyDefault int

	mux     *http.ServeMux
	parsers fastjson.ParserPool
	limiter *RateLimiter
	cors    string
	httpMu  sync.Mutex
	http    *http.Server
	logger  zerolog.Logger

	// baseCtx parents every request context; Shutdown cancels it to end
	// open log streams
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer creates a new API server and registers every route
func NewServer(opts Options) *Server {
	if opts.HistoryDefault <= 0 {
		opts.HistoryDefault = 100
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}

	s := &Server{
		broker:         opts.Broker,
		journal:        opts.Journal,
		version:        opts.Version,
		historyDefault: opts.HistoryDefault,
		mux:            http.NewServeMux(),
		limiter:        NewRateLimiter(opts.RateLimit),
		cors:           opts.AllowedOrigin,
		logger:         log.WithComponent("api"),
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	s.routes()
	return s
}

func (s *Server) routes() {
	// JSON endpoints
	s.handleJSON("GET /api/health", s.apiHealthHandler)
	s.handleJSON("POST /api/move", s.moveHandler)
	s.handleJSON("POST /api/mouse/move", s.mouseMoveHandler)
	s.handleJSON("GET /api/mouse/{id}/history", s.mouseHistoryHandler)
	s.handleJSON("GET /api/logs/history", s.logsHistoryHandler)
	s.handleJSON("GET /api/logs/stats", s.logsStatsHandler)
	s.handleJSON("POST /api/logs", s.limiter.Middleware(http.HandlerFunc(s.logsIngestHandler)).ServeHTTP)

	// Streams are never compressed or buffered
	s.handle("GET /api/logs/stream", s.sseHandler)
	s.handle("GET /api/logs/ws", s.wsHandler)

	// Operational endpoints
	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /health", metrics.HealthHandler())
	s.mux.HandleFunc("GET /ready", metrics.ReadyHandler())
	s.mux.HandleFunc("GET /live", metrics.LivenessHandler())
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.instrument(pattern, h))
}

func (s *Server) handleJSON(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.instrument(pattern, gzhttp.GzipHandler(h)))
}

// Handler returns the root handler, CORS included
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// Start listens on addr and serves until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	s.httpMu.Lock()
	s.http = srv
	s.httpMu.Unlock()
	s.limiter.StartCleanupJob()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("HTTP API listening")
	metrics.RegisterComponent(metrics.ComponentHTTP, true, "listening")

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		metrics.UpdateComponent(metrics.ComponentHTTP, false, err.Error())
		return err
	}
	return nil
}

// Shutdown ends open log streams, stops accepting requests and waits for
// in-flight ones until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	s.cancelBase()

	s.httpMu.Lock()
	srv := s.http
	s.httpMu.Unlock()
	if srv == nil {
		return nil
	}
	metrics.UpdateComponent(metrics.ComponentHTTP, false, "shutting down")
	return srv.Shutdown(ctx)
}
