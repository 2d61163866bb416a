// Package httpapi is the facade's optional REST surface. Grounded on the
// teacher's internal/api/server.go: a gin.Engine wrapping one service
// behind CORS, API-key auth, rate-limit, and body-size middleware, with
// graceful shutdown. The teacher wired a database/memory/search/ai
// quartet; this surface wires the single orchestration facade instead.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/memoryctl/memoryctl/internal/facade"
	"github.com/memoryctl/memoryctl/internal/logging"
	"github.com/memoryctl/memoryctl/internal/ratelimit"
	"github.com/memoryctl/memoryctl/pkg/config"
)

// Server wraps the facade behind a gin router.
type Server struct {
	router     *gin.Engine
	facade     *facade.Facade
	config     *config.Config
	httpServer *http.Server
	log        *logging.Logger
}

// NewServer assembles the HTTP surface over an already-constructed facade.
func NewServer(f *facade.Facade, cfg *config.Config) *Server {
	log := logging.GetLogger("httpapi")

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.Server.CORS {
		corsConfig := cors.Config{
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
			ExposeHeaders: []string{"Content-Length", "Retry-After"},
			MaxAge:        12 * time.Hour,
		}
		if cfg.Server.APIKey != "" {
			corsConfig.AllowOrigins = []string{
				"http://localhost:*",
				"http://127.0.0.1:*",
				"https://localhost:*",
				"https://127.0.0.1:*",
			}
			corsConfig.AllowWildcard = true
		} else {
			corsConfig.AllowAllOrigins = true
		}
		router.Use(cors.New(corsConfig))
	}

	if cfg.Server.APIKey != "" {
		log.Info("API key authentication enabled")
		router.Use(apiKeyAuthMiddleware(cfg.Server.APIKey))
	}

	if cfg.RateLimit.Enabled {
		log.Info("rate limiting enabled")
		router.Use(rateLimitMiddleware(ratelimit.NewLimiter(toRateLimitConfig(cfg))))
	}

	router.Use(maxBodySizeMiddleware(defaultBodyLimit))

	s := &Server{router: router, facade: f, config: cfg, log: log}
	s.setupRoutes()
	return s
}

func toRateLimitConfig(cfg *config.Config) *ratelimit.Config {
	rl := &ratelimit.Config{
		Enabled: cfg.RateLimit.Enabled,
		Global: ratelimit.LimitConfig{
			RequestsPerSecond: cfg.RateLimit.Global.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.Global.BurstSize,
		},
	}
	for _, t := range cfg.RateLimit.Tools {
		rl.Tools = append(rl.Tools, ratelimit.ToolLimit{
			Name:              t.Name,
			RequestsPerSecond: t.RequestsPerSecond,
			BurstSize:         t.BurstSize,
		})
	}
	return rl
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)

		v1.POST("/memories", s.handleSave)
		v1.GET("/memories/search", s.handleSearch)
		v1.GET("/memories/recent", s.handleRecent)

		v1.GET("/stats", s.handleStats)

		v1.POST("/maintenance", s.handleMaintain)
		v1.POST("/promote", s.handlePromote)
		v1.POST("/cluster", s.handleCluster)
		v1.POST("/consolidate", s.handleConsolidate)
	}
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	s.log.Info("starting facade HTTP server", "address", addr)
	return s.httpServer.ListenAndServe()
}

// StartWithContext runs the server until ctx is cancelled, then shuts it
// down gracefully within shutdownTimeout.
func (s *Server) StartWithContext(ctx context.Context, shutdownTimeout time.Duration) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting facade HTTP server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("stopping facade HTTP server")
	return s.httpServer.Shutdown(ctx)
}
