package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	messagingdocs "github.com/worknest/messaging-api/docs/swagger"
	"github.com/worknest/messaging-api/internal/config"
	"github.com/worknest/messaging-api/internal/domain/user"
	"github.com/worknest/messaging-api/internal/infrastructure/auth"
	middleware "github.com/worknest/messaging-api/internal/interfaces/httpserver/middlewares"
	v1 "github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1"
	"github.com/worknest/messaging-api/internal/utils/sanitize"
)

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HTTPServer struct {
	engine *gin.Engine
	cfg    *config.Config
	log    zerolog.Logger
}

func NewHttpServer(
	cfg *config.Config,
	log zerolog.Logger,
	v1Route *v1.V1Route,
	users user.Service,
	validator auth.TokenValidator,
	checks []ReadinessCheck,
) *HTTPServer {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	messagingdocs.SwaggerInfo.BasePath = "/"

	server := &HTTPServer{
		engine: gin.New(),
		cfg:    cfg,
		log:    log,
	}
	server.engine.Use(gin.Recovery())
	server.engine.Use(middleware.RequestID())
	scrub := sanitize.New(sanitize.Level(cfg.LogPIILevel), cfg.ServiceName)
	server.engine.Use(middleware.TracingMiddleware(cfg.ServiceName, scrub))
	server.engine.Use(middleware.LoggingMiddleware(log, scrub))
	server.engine.Use(middleware.MetricsMiddleware())
	server.engine.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	server.registerCoreRoutes(validator, checks)

	public := server.engine.Group("/")
	v1Route.RegisterPublicRouter(public)

	protected := server.engine.Group("/")
	protected.Use(
		middleware.AuthMiddleware(middleware.AuthOptions{
			Validator:           validator,
			TrustGatewayHeaders: cfg.TrustGatewayAuth,
			TrustGatewayRoles:   cfg.TrustGatewayRoles,
			Issuer:              cfg.AuthIssuer,
		}, log),
		middleware.UserSyncMiddleware(users, log),
		middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitBurst, cfg.RateLimitKeys),
	)
	v1Route.RegisterRouter(protected)

	return server
}

func (s *HTTPServer) registerCoreRoutes(validator auth.TokenValidator, checks []ReadinessCheck) {
	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": s.cfg.ServiceName, "status": "ok"})
	})
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	s.engine.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		failures := gin.H{}
		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				s.log.Warn().Err(err).Str("check", check.Name).Msg("readiness check failed")
				failures[check.Name] = err.Error()
			}
		}
		if len(failures) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failures": failures})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	s.engine.GET("/health/auth", func(c *gin.Context) {
		if ready, ok := validator.(interface{ Ready() bool }); ok && !ready.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "initializing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP listener and handles graceful shutdown via context cancellation.
func (s *HTTPServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr()).Msg("messaging-api HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("context cancelled, shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
