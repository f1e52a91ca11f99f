// Package server exposes the render pipeline over HTTP.
//
// Routes:
//
//	POST /v1/render        JSON request body, rendered image in the response
//	GET  /v1/presets       catalog entries as JSON
//	GET  /v1/presets/{id}  one catalog entry
//	GET  /healthz          liveness
//
// Errors are JSON objects {"error": {"code": ..., "message": ...}} with a
// status derived from the error code.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/overlay/pkg/catalog"
	"github.com/matzehuels/overlay/pkg/errors"
	"github.com/matzehuels/overlay/pkg/pipeline"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultRequestTimeout = 45 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
	shutdownTimeout       = 10 * time.Second
)

// Response headers set by /v1/render.
const (
	HeaderRequestID   = "X-Request-Id"
	HeaderCache       = "X-Overlay-Cache"
	HeaderFrames      = "X-Overlay-Frames"
	HeaderDiagnostics = "X-Overlay-Diagnostics"
)

// Options configures a Server. Zero values take the defaults.
type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Logger         *log.Logger
}

// Server serves renders. It is safe for concurrent use.
type Server struct {
	runner  *pipeline.Runner
	catalog catalog.Catalog
	opts    Options
	logger  *log.Logger
}

// New creates a server. cat may be nil, in which case the preset routes
// return an empty list.
func New(runner *pipeline.Runner, cat catalog.Catalog, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{runner: runner, catalog: cat, opts: opts, logger: logger.WithPrefix("http")}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
		r.Post("/render", s.handleRender)
		r.Get("/presets", s.handlePresets)
		r.Get("/presets/{id}", s.handlePreset)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.writeError(w, r, errors.SizeLimit("request body", tooLarge.Limit+1, tooLarge.Limit))
			return
		}
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "read request body"))
		return
	}

	req, err := pipeline.DecodeRequest(body, pipeline.FormatJSON)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.runner.Render(r.Context(), *req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	h.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", res.Filename))
	h.Set(HeaderRequestID, res.RequestID)
	h.Set(HeaderFrames, strconv.Itoa(res.Frames))
	if res.CacheHit {
		h.Set(HeaderCache, "hit")
	} else {
		h.Set(HeaderCache, "miss")
	}
	for _, d := range res.Diagnostics {
		h.Add(HeaderDiagnostics, d)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	entries := []catalog.Entry{}
	if s.catalog != nil {
		list, err := s.catalog.List(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if list != nil {
			entries = list
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"presets": entries})
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.catalog == nil {
		s.writeError(w, r, errors.New(errors.ErrCodeNotFound, "preset %q not found", id))
		return
	}
	e, err := s.catalog.Lookup(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// =============================================================================
// Responses
// =============================================================================

type errorBody struct {
	Error struct {
		Code    errors.Code `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
}

// StatusCode maps an error to an HTTP status.
func StatusCode(err error) int {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidColor, errors.ErrCodeInvalidPath, errors.ErrCodeMarkup:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeSizeLimit:
		return http.StatusRequestEntityTooLarge
	case errors.ErrCodeDecode, errors.ErrCodeUnsupported:
		return http.StatusUnsupportedMediaType
	case errors.ErrCodeFetch:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	var body errorBody
	body.Error.Code = errors.GetCode(err)
	if body.Error.Code == "" {
		body.Error.Code = errors.ErrCodeInternal
	}
	body.Error.Message = errors.UserMessage(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request", middleware.GetReqID(r.Context()), "err", err)
		body.Error.Message = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// logRequests logs one line per request at info level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info(r.Method+" "+r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request", middleware.GetReqID(r.Context()))
	})
}
