// Package httpapi serves rendered placeholders over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-content-placeholders/content"
	"github.com/goliatone/go-content-placeholders/internal/observability"
	"github.com/goliatone/go-content-placeholders/rendering"
	"github.com/goliatone/go-content-placeholders/reqctx"
)

// Server exposes the rendering engine.
type Server struct {
	engine   *rendering.Engine
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	router   *gin.Engine
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGatherer serves the metrics of g at /metrics. Without it the route is
// not registered.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// New builds the router. The gin mode is left to the caller.
func New(engine *rendering.Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: observability.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	settings := engine.Settings()
	r := gin.New()
	r.Use(gin.Recovery(), requestContext(), accessLog(s.logger), activeLanguage(settings.Languages, settings.DefaultLanguage))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/placeholders/:parent_type/:parent_id/:slot", s.renderPlaceholder)
	r.GET("/placeholders/:parent_type/:parent_id/:slot/search", s.searchText)
	r.POST("/cache/flush", s.flushCache)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down within timeout.
func (s *Server) Run(ctx context.Context, addr string, timeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) placeholder(c *gin.Context) (*content.Placeholder, bool) {
	parentType, err := strconv.ParseInt(c.Param("parent_type"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid parent type")
		return nil, false
	}
	parentID, err := strconv.ParseInt(c.Param("parent_id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid parent id")
		return nil, false
	}

	parent := content.ParentRef{TypeID: parentType, ID: parentID}
	ph, err := s.engine.Store().PlaceholderBySlot(c.Request.Context(), parent, c.Param("slot"))
	if errors.Is(err, content.ErrNotFound) {
		c.String(http.StatusNotFound, "placeholder not found")
		return nil, false
	}
	if err != nil {
		s.fail(c, "load placeholder", err)
		return nil, false
	}
	return ph, true
}

func renderOptions(c *gin.Context) []rendering.RenderOption {
	var opts []rendering.RenderOption
	if lang := reqctx.Language(c.Request.Context()); lang != "" {
		opts = append(opts, rendering.WithParentLanguage(lang))
	}
	switch fallback := c.Query("fallback"); fallback {
	case "":
	case "default", "true", "1":
		opts = append(opts, rendering.WithDefaultFallback())
	default:
		opts = append(opts, rendering.WithFallbackLanguage(fallback))
	}
	if tmpl := c.Query("template"); tmpl != "" {
		opts = append(opts, rendering.WithTemplate(tmpl))
	}
	return opts
}

func (s *Server) renderPlaceholder(c *gin.Context) {
	ph, ok := s.placeholder(c)
	if !ok {
		return
	}
	ctx := reqctx.WithFrontendMedia(c.Request.Context())
	if edit, _ := strconv.ParseBool(c.Query("edit")); edit {
		ctx = reqctx.WithEditMode(ctx, true)
	}

	out, err := s.engine.RenderPlaceholder(ctx, ph, renderOptions(c)...)
	if err != nil {
		s.fail(c, "render placeholder", err)
		return
	}
	if out.Redirect != nil {
		status := out.Redirect.StatusOrDefault()
		if status < http.StatusMultipleChoices || status > http.StatusPermanentRedirect {
			status = http.StatusFound
		}
		c.Redirect(status, out.Redirect.URL)
		return
	}

	rendering.RegisterFrontendMedia(ctx, out.Media)
	var body strings.Builder
	body.WriteString(rendering.FrontendMedia(ctx).HTML())
	body.WriteString(out.HTML)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body.String()))
}

func (s *Server) searchText(c *gin.Context) {
	ph, ok := s.placeholder(c)
	if !ok {
		return
	}
	text, err := s.engine.RenderPlaceholderSearchText(c.Request.Context(), ph, renderOptions(c)...)
	if err != nil {
		s.fail(c, "render search text", err)
		return
	}
	c.String(http.StatusOK, text)
}

func (s *Server) flushCache(c *gin.Context) {
	err := s.engine.FlushOutput(c.Request.Context())
	if errors.Is(err, rendering.ErrFlushUnsupported) {
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, "flush output cache", err)
		return
	}
	s.logger.Info("output cache flushed", "request_id", reqctx.RequestID(c.Request.Context()))
	c.Status(http.StatusNoContent)
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	s.logger.Error(op+" failed", "path", c.Request.URL.Path, "request_id", reqctx.RequestID(c.Request.Context()), "error", err)
	c.String(http.StatusInternalServerError, "internal error")
}
