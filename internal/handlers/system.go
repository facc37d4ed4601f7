package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/services"
)

type SystemHandler struct {
	log            *logger.Logger
	systemService  services.SystemService
	metricsEnabled bool
}

func NewSystemHandler(log *logger.Logger, systemService services.SystemService, metricsEnabled bool) *SystemHandler {
	return &SystemHandler{
		log:            log.With("handler", "SystemHandler"),
		systemService:  systemService,
		metricsEnabled: metricsEnabled,
	}
}

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func Live(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *SystemHandler) Ready(c *gin.Context) {
	if !h.systemService.Ready(c.Request.Context()) {
		c.String(http.StatusServiceUnavailable, "not ready")
		return
	}
	c.String(http.StatusOK, "ready")
}

func (h *SystemHandler) DetailedHealth(c *gin.Context) {
	report := h.systemService.Health(c.Request.Context())
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (h *SystemHandler) Metrics(c *gin.Context) {
	if !h.metricsEnabled {
		RespondError(c, http.StatusNotFound, "metrics_disabled", errors.New("metrics endpoint is disabled"))
		return
	}
	report, err := h.systemService.Metrics(c.Request.Context())
	if err != nil {
		h.log.Error("Metrics failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "metrics_failed", err)
		return
	}
	RespondOK(c, report)
}
