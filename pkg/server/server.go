package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/usecase/document"
	"github.com/m-mizutani/docent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// UseCase is the set of document operations served over HTTP
type UseCase interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
	Summarize(ctx context.Context, path string) (*document.SummaryResult, error)
	SummarizeURL(ctx context.Context, rawURL string) (*document.SummaryResult, error)
	Chat(ctx context.Context, sessionID model.SessionID, message string) (*document.ChatResult, error)
	DeleteSession(ctx context.Context, sessionID model.SessionID) error
}

const sessionNotFoundDetail = "Session not found. Please upload a PDF first."

// DefaultCORSOrigins covers the desktop frontend, which loads from file:// and sends
// "Origin: null", and the usual local dev server origins
var DefaultCORSOrigins = []string{"null", "http://localhost:5173", "http://localhost:3000"}

type Server struct {
	uc          UseCase
	corsOrigins []string
	mcp         http.Handler
	router      *chi.Mux
}

type Option func(*Server)

// WithMCP mounts an MCP streamable HTTP handler at /mcp
func WithMCP(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// WithCORSOrigins sets the origins allowed to call the API from a browser
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

func New(uc UseCase, opts ...Option) *Server {
	s := &Server{
		uc:          uc,
		corsOrigins: DefaultCORSOrigins,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Post("/summarize", s.handleSummarize)
	r.Post("/summarize_url", s.handleSummarizeURL)
	r.Post("/chat", s.handleChat)
	r.Delete("/sessions/{id}", s.handleDeleteSession)
	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
	}

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("server started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return goerr.Wrap(err, "server stopped", goerr.V("addr", addr))
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shut down server")
		}
		logging.From(ctx).Info("server stopped")
		return nil
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithAttrs(r.Context(),
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
		)
		logger := logging.From(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Info("request handled",
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Warn("failed to write response", "error", err)
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// writeError maps error kinds to status codes. Unknown sessions are 404,
// malformed requests 400, and everything else 500 with the error message.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	detail := err.Error()

	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		status = http.StatusNotFound
		detail = sessionNotFoundDetail
	case errors.Is(err, model.ErrInvalidRequest):
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		logging.From(ctx).Error("request failed", "error", err)
	} else {
		logging.From(ctx).Warn("request rejected", "status", status, "error", err)
	}
	writeJSON(ctx, w, status, errorResponse{Detail: detail})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return goerr.Wrap(model.ErrInvalidRequest, "malformed request body", goerr.V("error", err.Error()))
	}
	return nil
}
