package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backend/internal/handler"
	"backend/internal/middleware"
	"backend/internal/service"
)

// Handlers bundles the route handlers the server mounts.
type Handlers struct {
	Auth     handler.AuthHandler
	Reports  handler.ReportHandler
	Debates  handler.DebateHandler
	Scout    handler.ScoutHandler
	Settings handler.SettingsHandler
	Stats    handler.StatsHandler
}

type Server struct {
	router *gin.Engine
	logger *zap.Logger
}

func NewServer(h Handlers, authService service.AuthService, logger *zap.Logger) *Server {
	router := gin.Default()

	s := &Server{
		router: router,
		logger: logger,
	}
	s.setupRoutes(h, authService)

	return s
}

func (s *Server) setupRoutes(h Handlers, authService service.AuthService) {
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Public surface: reading debates, submitting reports, voting.
	api := s.router.Group("/api")
	{
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)

		api.POST("/reports", h.Reports.Submit)

		api.GET("/debates", h.Debates.List)
		api.GET("/debates/:id", h.Debates.Get)
		api.POST("/debates/:id/confirm", h.Debates.Confirm)

		api.GET("/stats", h.Stats.Get)
		api.GET("/tags", handler.GetTags)
	}

	// Admin surface: queue management, orchestration, scheduler control.
	admin := s.router.Group("/api")
	admin.Use(middleware.AuthMiddleware(authService.Secret(), s.logger))
	{
		admin.GET("/reports", h.Reports.List)
		admin.DELETE("/reports/:id", h.Reports.Delete)
		admin.POST("/reports/:id/process", h.Reports.Process)

		admin.POST("/scout/mission", h.Scout.TriggerMission)

		admin.GET("/settings", h.Settings.Get)
		admin.PUT("/settings/worker", h.Settings.SetWorker)
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests
// before returning.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("Server starting", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
