// Package httpapi serves the generation pipeline over HTTP: a JSON API, the
// HTML fill forms and the operational endpoints.
package httpapi

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/orchestrator"
	"github.com/goliatone/go-docfill/pkg/render/template"
	"github.com/goliatone/go-docfill/pkg/render/template/gotemplate"
	"github.com/goliatone/go-docfill/pkg/schema"
)

//go:embed pages
var pageFiles embed.FS

// Generator is the slice of the orchestrator the server needs.
type Generator interface {
	Generate(ctx context.Context, req orchestrator.Request) (document.RenderedDocument, error)
	Schema(ctx context.Context, id string) (schema.TemplateSchema, error)
	Templates(ctx context.Context) ([]schema.TemplateSchema, error)
	Targets(native document.Format) []document.Format
}

var _ Generator = (*orchestrator.Orchestrator)(nil)

// Option customises the server.
type Option func(*Server)

// WithLogger attaches the request and error logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts a Prometheus handler on /metrics.
func WithMetrics(handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = handler
	}
}

// WithTranslator replaces the bundled en/ru catalog.
func WithTranslator(c *Catalog) Option {
	return func(s *Server) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithDefaultLang sets the page language used when neither the cookie nor
// Accept-Language selects one.
func WithDefaultLang(lang string) Option {
	return func(s *Server) {
		s.defaultLang = lang
	}
}

// WithTimeouts configures the underlying http.Server.
func WithTimeouts(read, write, shutdown time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
		s.shutdownTimeout = shutdown
	}
}

// WithVersion is reported in the OpenAPI document.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithPages replaces the embedded page templates.
func WithPages(files fs.FS) Option {
	return func(s *Server) {
		s.pageFS = files
	}
}

// Server is an echo application bound to one Generator.
type Server struct {
	echo      *echo.Echo
	generator Generator
	pages     template.PageRenderer
	pageFS    fs.FS
	catalog   *Catalog
	metrics   http.Handler
	logger    zerolog.Logger

	defaultLang     string
	version         string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
}

// New builds the server and registers every route.
func New(gen Generator, options ...Option) (*Server, error) {
	if gen == nil {
		return nil, errors.New("httpapi: generator is required")
	}
	s := &Server{
		generator:       gen,
		logger:          zerolog.Nop(),
		defaultLang:     "en",
		version:         "dev",
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}

	if s.catalog == nil {
		catalog, err := DefaultCatalog()
		if err != nil {
			return nil, err
		}
		s.catalog = catalog
	}
	if !s.catalog.supports(s.defaultLang) {
		return nil, fmt.Errorf("httpapi: default language %q has no translations", s.defaultLang)
	}
	if s.pageFS == nil {
		sub, err := fs.Sub(pageFiles, "pages")
		if err != nil {
			return nil, fmt.Errorf("httpapi: pages: %w", err)
		}
		s.pageFS = sub
	}

	pages, err := gotemplate.New(
		gotemplate.WithName("docfill-pages"),
		gotemplate.WithFS(s.pageFS),
		gotemplate.WithFunctions(map[string]any{
			"translate": translateFunc(s.catalog),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("httpapi: pages: %w", err)
	}
	s.pages = pages

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError
	s.echo.Server.ReadTimeout = s.readTimeout
	s.echo.Server.WriteTimeout = s.writeTimeout

	s.echo.Use(
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			Generator: uuid.NewString,
		}),
		middleware.Recover(),
		middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:    true,
			LogURI:       true,
			LogStatus:    true,
			LogLatency:   true,
			LogRequestID: true,
			LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("request_id", v.RequestID).
					Msg("request")
				return nil
			},
		}),
	)
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.echo.GET("/", s.index)
	s.echo.GET("/fill/*", s.fill)
	s.echo.POST("/generate", s.generateForm)
	s.echo.GET("/set_lang", s.setLang)

	api := s.echo.Group("/api")
	api.GET("/templates", s.listTemplates)
	api.GET("/templates/*", s.describeTemplate)
	api.POST("/templates/*", s.generateAPI)

	s.echo.GET("/openapi.json", s.openAPI)
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}
}

// Handler exposes the server as an http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()
	s.logger.Info().Str("addr", addr).Msg("listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpapi: %w", err)
	}
	return nil
}
