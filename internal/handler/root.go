package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const ServiceName = "Key Management API"

// Version is overridden at build time with -ldflags "-X ...handler.Version=".
var Version = "1.0.0"

func Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": ServiceName,
		"version": Version,
		"endpoints": gin.H{
			"generate": "POST /api/v1/keys",
			"validate": "POST /api/v1/keys/validate",
			"info":     "GET /api/v1/keys/{key}",
			"revoke":   "DELETE /api/v1/keys/{key}",
			"list":     "GET /api/v1/keys",
			"stats":    "GET /api/v1/stats",
			"token":    "POST /api/v1/auth/token",
			"access":   "GET /api/v1/access",
			"health":   "GET /healthz",
			"metrics":  "GET /metrics",
		},
	})
}
