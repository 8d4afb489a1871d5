// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/config"
	"github.com/xkilldash9x/clickrender/internal/interaction"
	"github.com/xkilldash9x/clickrender/internal/observability"
	"github.com/xkilldash9x/clickrender/internal/render"
)

// Response bodies. Internal error detail is never sent to clients.
const (
	msgMissingURL   = "Missing url"
	msgInvalidJSON  = "Invalid JSON body"
	msgRenderFailed = "Failed to render page"
)

// HeaderRenderSteps carries "<succeeded>/<total>" for the request's steps.
const HeaderRenderSteps = "X-Render-Steps"

// Renderer is the render pipeline behind POST /render.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Result, error)
}

// Server exposes the renderer over HTTP.
type Server struct {
	cfg      config.ServerConfig
	renderer Renderer
	metrics  *observability.Metrics
	logger   *zap.Logger
	router   chi.Router
}

// New builds the router. Call ListenAndServe to start accepting requests.
func New(cfg config.ServerConfig, renderer Renderer, metrics *observability.Metrics, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		renderer: renderer,
		metrics:  metrics,
		logger:   logger.Named("http"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Post("/render", s.handleRender)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is done, then drains in-flight requests
// within the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("Listening.", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err, ok := <-serverErr:
		if !ok {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	log := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	req, err := s.decodeRequest(w, r)
	if err != nil {
		var ve *render.ValidationError
		if errors.As(err, &ve) {
			writeText(w, http.StatusBadRequest, msgMissingURL)
			return
		}
		log.Debug("Rejected request body.", zap.Error(err))
		writeText(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		req.RunID = runIDFromRequestID(id)
	}

	res, err := s.renderer.Render(r.Context(), req)
	if err != nil {
		if render.IsValidation(err) {
			writeText(w, http.StatusBadRequest, msgMissingURL)
			return
		}
		log.Error("Render failed.", zap.String("url", req.URL), zap.Error(err))
		writeText(w, http.StatusInternalServerError, msgRenderFailed)
		return
	}

	w.Header().Set(HeaderRenderSteps, fmt.Sprintf("%d/%d", res.Report.Succeeded(), len(res.Report.Results)))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, res.HTML)
}

// decodeRequest reads {"url": string, "clicks": [...]}. A missing or
// non-array "clicks" is treated as no steps.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (render.Request, error) {
	body := r.Body
	if s.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return render.Request{}, fmt.Errorf("reading body: %w", err)
	}
	if !jsoniter.Valid(data) {
		return render.Request{}, errors.New("body is not valid JSON")
	}

	root := jsoniter.Get(data)
	if root.ValueType() != jsoniter.ObjectValue {
		return render.Request{}, errors.New("body is not a JSON object")
	}
	u := root.Get("url")
	if u.ValueType() != jsoniter.StringValue || strings.TrimSpace(u.ToString()) == "" {
		return render.Request{}, &render.ValidationError{Field: "url", Reason: "is required"}
	}
	return render.Request{
		URL:   u.ToString(),
		Steps: interaction.StepsFromAny(root.Get("clicks")),
	}, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

// accessLog logs one line per request once the handler returns.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("Request served.",
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

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

// runIDFromRequestID turns chi's "host/prefix-000001" request IDs into a
// single path segment.
func runIDFromRequestID(id string) string {
	return strings.NewReplacer("/", "-", "\\", "-").Replace(id)
}
