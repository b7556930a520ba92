// Package server exposes the search, find-me and chat services over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/smartstudy-abroad/smartstudy/internal/logger"
	"github.com/smartstudy-abroad/smartstudy/internal/matching"
	"github.com/smartstudy-abroad/smartstudy/internal/program"
	"github.com/smartstudy-abroad/smartstudy/internal/search"
)

// ServiceName is reported by the health endpoint.
const ServiceName = logger.ServiceName

// Searcher answers program lookups.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
	Lookup(ctx context.Context, term string) ([]program.Record, error)
	Delete(ctx context.Context, university, degree, field string) (bool, error)
}

// Matcher ranks stored programs for a profile.
type Matcher interface {
	FindMatches(ctx context.Context, p matching.Profile, k int) (matching.Matches, error)
}

// Chatter answers assistant messages.
type Chatter interface {
	Reply(ctx context.Context, message string) (string, error)
}

// Options configures the HTTP server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	// DefaultTopK is used when a find-me request gives no top_k.
	DefaultTopK int
}

// Server is the HTTP surface of the backend.
type Server struct {
	search  Searcher
	matcher Matcher
	chat    Chatter
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// New constructs a Server.
func New(s Searcher, m Matcher, c Chatter, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Addr == "" {
		opts.Addr = ":5000"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{search: s, matcher: m, chat: c, opts: opts, logger: log, now: time.Now}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(s.opts.MaxBodyBytes))

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/fetch_all", s.handleFetchAll)
		r.Post("/findme", s.handleFindMe)
		r.Post("/chat", s.handleChat)
		r.Get("/programs", s.handlePrograms)
		r.Delete("/programs", s.handleDeleteProgram)
		r.Get("/health", s.handleHealth)
	})
	return r
}

// Run serves until ctx is canceled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote", r.RemoteAddr),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
