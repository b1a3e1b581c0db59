// Package api wires the HTTP surface of the bridge.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/guirra-diy/smarthome-bridge-go/internal/api/handlers"
	"github.com/guirra-diy/smarthome-bridge-go/internal/api/middleware"
	"github.com/guirra-diy/smarthome-bridge-go/internal/config"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/directives"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database"
)

// NewRouter creates and configures the main HTTP router
func NewRouter(cfg *config.Config, db *sqlx.DB, repos *database.Repositories, directiveRouter *directives.Router, logger *logrus.Logger) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware())

	h := handlers.NewHandlers(cfg, db, repos, directiveRouter, logger)

	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	{
		alexa := api.Group("/alexa")
		{
			alexa.POST("/directive", h.Directive)
		}

		devices := api.Group("/devices")
		{
			devices.GET("/", h.GetDevices)
			devices.GET("/:id", h.GetDevice)
		}
	}

	return router
}
