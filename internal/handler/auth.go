package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/makkenzo/key-service-api/internal/handler/dto"
	"github.com/makkenzo/key-service-api/internal/service"
)

type AuthHandler struct {
	service *service.AuthService
	logger  *zap.Logger
}

func NewAuthHandler(service *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.Named("AuthHandler"),
	}
}

// Token exchanges a static admin token for a short-lived admin JWT.
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.AdminTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind admin token request", zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}

	token, expiresAt, err := h.service.IssueToken(c.Request.Context(), req.AdminToken)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.AdminTokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	})
}
