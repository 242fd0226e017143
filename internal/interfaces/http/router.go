package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmaschool/authcore/internal/infrastructure/devauthority"
	"github.com/pmaschool/authcore/internal/interfaces/http/handlers/backend"
	"github.com/pmaschool/authcore/internal/interfaces/http/handlers/devices"
	"github.com/pmaschool/authcore/internal/interfaces/http/middleware"
	"github.com/pmaschool/authcore/internal/shared/config"
	"github.com/pmaschool/authcore/internal/shared/logger"
	rpc "github.com/pmaschool/authcore/internal/shared/rpcprotocol"
)

// Router represents the development authority's HTTP router
type Router struct {
	engine          *gin.Engine
	backendHandler  *backend.Handler
	devicesHandler  *devices.Handler
	adminMiddleware *middleware.AdminTokenMiddleware
	adminEnabled    bool
	logger          logger.Interface
}

func NewRouter(authority *devauthority.Authority, cfg config.DevAuthorityConfig, log logger.Interface) *Router {
	return &Router{
		engine:          gin.New(),
		backendHandler:  backend.NewHandler(authority, cfg.Database, log),
		devicesHandler:  devices.NewHandler(authority, log),
		adminMiddleware: middleware.NewAdminTokenMiddleware(cfg.AdminToken, log),
		adminEnabled:    cfg.AdminToken != "",
		logger:          log,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.CustomLogger(r.logger))
	r.engine.Use(middleware.Recovery(r.logger))

	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.engine.POST(rpc.PathDatabaseList, r.backendHandler.DatabaseList)
	r.engine.POST(rpc.PathAuthenticate, r.backendHandler.Authenticate)
	r.engine.POST(rpc.PathSessionInfo, r.backendHandler.SessionInfo)
	r.engine.POST(rpc.PathDestroy, r.backendHandler.Destroy)
	r.engine.POST(rpc.PathCallKW, r.backendHandler.CallKW)

	if !r.adminEnabled {
		r.logger.Infow("admin routes disabled, no admin token configured")
		return
	}

	admin := r.engine.Group("/admin")
	admin.Use(r.adminMiddleware.RequireAdminToken())
	{
		admin.GET("/devices", r.devicesHandler.ListDevices)
		admin.POST("/devices/:id/activate", r.devicesHandler.ActivateDevice)
		admin.POST("/devices/:id/disable", r.devicesHandler.DisableDevice)
		admin.POST("/devices/:id/revoke", r.devicesHandler.RevokeDevice)
		admin.POST("/users", r.devicesHandler.CreateUser)
		admin.GET("/auth-logs", r.devicesHandler.ListAuthLogs)
	}
}

// Handler returns the engine as a plain http.Handler for servers and tests.
func (r *Router) Handler() http.Handler {
	return r.engine
}
