package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SystemHandler serves system-level endpoints
type SystemHandler struct {
	BaseHandler
	appName string
	env     string
}

// NewSystemHandler creates a SystemHandler
func NewSystemHandler(appName, env string) *SystemHandler {
	return &SystemHandler{appName: appName, env: env}
}

// Ping responds with pong
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Info returns basic service information
func (h *SystemHandler) Info(c *gin.Context) {
	h.Success(c, gin.H{
		"name": h.appName,
		"env":  h.env,
		"time": time.Now().Format(time.RFC3339),
	})
}
