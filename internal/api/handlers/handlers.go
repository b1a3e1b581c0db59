// Package handlers holds the HTTP handlers for the bridge API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/guirra-diy/smarthome-bridge-go/internal/alexa"
	"github.com/guirra-diy/smarthome-bridge-go/internal/config"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/directives"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database/repositories"
	"github.com/guirra-diy/smarthome-bridge-go/pkg/utils"
)

// Handlers contains all HTTP handlers and their dependencies
type Handlers struct {
	cfg    *config.Config
	db     *sqlx.DB
	repos  *database.Repositories
	router *directives.Router
	log    *logrus.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg *config.Config, db *sqlx.DB, repos *database.Repositories, router *directives.Router, log *logrus.Logger) *Handlers {
	return &Handlers{
		cfg:    cfg,
		db:     db,
		repos:  repos,
		router: router,
		log:    log,
	}
}

// Health returns service health status
func (h *Handlers) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			h.log.WithError(err).Error("Health check database ping failed")
			utils.SendError(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}

	utils.SendSuccess(c, gin.H{
		"status":  "healthy",
		"service": "smarthome-bridge",
	})
}

// Directive accepts an Alexa directive envelope and returns the translated
// response. The HTTP status is always 200; failures travel inside the
// envelope as ErrorResponse events.
func (h *Handlers) Directive(c *gin.Context) {
	var request alexa.DirectiveRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.log.WithError(err).Warn("Malformed directive envelope")
		utils.SendError(c, http.StatusBadRequest, "malformed directive envelope")
		return
	}

	response := h.router.Handle(c.Request.Context(), &request)
	c.JSON(http.StatusOK, response)
}

// GetDevices returns all registered devices for a user
func (h *Handlers) GetDevices(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		utils.SendError(c, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	devices, err := h.repos.Device.GetByUser(c.Request.Context(), userID)
	if err != nil {
		h.log.WithError(err).Error("Failed to list devices")
		utils.SendError(c, http.StatusInternalServerError, "failed to list devices")
		return
	}

	utils.SendSuccess(c, devices)
}

// GetDevice returns a single registered device
func (h *Handlers) GetDevice(c *gin.Context) {
	device, err := h.repos.Device.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			utils.SendError(c, http.StatusNotFound, "device not found")
			return
		}
		h.log.WithError(err).Error("Failed to load device")
		utils.SendError(c, http.StatusInternalServerError, "failed to load device")
		return
	}

	utils.SendSuccess(c, device)
}
