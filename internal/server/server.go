package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mediashare/internal/config"
	"mediashare/internal/handlers"
	"mediashare/internal/middleware"
)

type HTTPServer struct {
	engine *gin.Engine
	server *http.Server
	log    zerolog.Logger
	cfg    *config.AppConfig
}

// NewEngine builds the router: global middleware, the rate limited /api group, stored
// media and /metrics.
func NewEngine(cfg *config.AppConfig, log zerolog.Logger, handlerSet handlers.HandlerSet, limiter *middleware.RateLimiter) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.RedirectTrailingSlash = true
	engine.MaxMultipartMemory = 32 << 20

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log, "/api/health", "/metrics"),
		middleware.Recovery(log),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.AllowCORSOrigins),
		middleware.Metrics(),
	)

	api := engine.Group("/api")
	if limiter != nil {
		api.Use(middleware.RateLimit(limiter))
	}
	handlerSet.Register(api)
	handlerSet.RegisterFiles(engine.Group(""))

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return engine
}

func NewHTTPServer(cfg *config.AppConfig, log zerolog.Logger, handlerSet handlers.HandlerSet, limiter *middleware.RateLimiter) *HTTPServer {
	engine := NewEngine(cfg, log, handlerSet, limiter)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &HTTPServer{
		engine: engine,
		server: srv,
		log:    log,
		cfg:    cfg,
	}
}

func (s *HTTPServer) Start() error {
	s.log.Info().
		Str("addr", s.server.Addr).
		Msg("http server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}
