package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-gateway/internal/agent/service"
	"github.com/lk2023060901/agent-gateway/internal/conf"
	apperrors "github.com/lk2023060901/agent-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agent-gateway/internal/pkg/response"
)

type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	agentService *service.AgentService,
) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
			Handler:           NewRouter(config.Server.Mode, log, agentService),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// NewRouter builds the gin engine with logging, recovery, health and the
// agent routes.
func NewRouter(mode string, log *logger.Logger, agentService *service.AgentService) *gin.Engine {
	switch mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log, "/health"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	agentService.RegisterRoutes(router)

	router.NoRoute(func(c *gin.Context) {
		response.ErrorWithCode(c, apperrors.ErrNotFound, c.Request.URL.Path)
	})
	return router
}

func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}
