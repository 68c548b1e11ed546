/**
 * HTTP Server
 *
 * Verification, question answering and document indexing endpoints.
 */

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/adverant/nexus/idverify/internal/config"
	"github.com/adverant/nexus/idverify/internal/logging"
	"github.com/adverant/nexus/idverify/internal/processor"
	"github.com/adverant/nexus/idverify/internal/storage"
)

// Verifier runs name extraction on an uploaded image
type Verifier interface {
	Run(ctx context.Context, filename string) (*processor.ExtractionResult, error)
}

// Answerer answers questions about the indexed reference document
type Answerer interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Enqueuer schedules a stored PDF for indexing
type Enqueuer interface {
	EnqueueIndex(ctx context.Context, filename string) (string, error)
}

// Auditor records verification attempts
type Auditor interface {
	RecordVerification(ctx context.Context, rec *storage.VerificationRecord) error
}

// Deps are the collaborators behind the endpoints. Answerer, Queue and
// Audit are optional; the endpoints that need a missing one answer 503.
type Deps struct {
	Raw      storage.ImageStore
	Verifier Verifier
	Answerer Answerer
	Queue    Enqueuer
	Audit    Auditor
}

// Server is the HTTP front of the service
type Server struct {
	cfg     config.ServerConfig
	deps    Deps
	router  chi.Router
	handler http.Handler
	http    *http.Server
	logger  *logging.Logger
}

// New wires the routes
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Raw == nil {
		return nil, errors.New("raw store is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("verifier is required")
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewLogger("Server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	s.Attach(r)
	s.router = r
	s.handler = otelhttp.NewHandler(r, "idverify",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	return s, nil
}

// Attach registers the endpoints on r
func (s *Server) Attach(r chi.Router) {
	r.Get("/health", s.handleHealth)

	r.Post("/upload", s.handleUpload)
	r.Post("/ask", s.handleAsk)
	r.Post("/documents", s.handleDocument)
}

// Handler is the instrumented router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe blocks until the server stops. It returns nil after a
// clean Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info("HTTP server listening", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		kv := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			kv = append(kv, "trace_id", sc.TraceID().String())
		}
		s.logger.Info("Request handled", kv...)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}
