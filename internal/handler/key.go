package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/makkenzo/key-service-api/internal/handler/dto"
	"github.com/makkenzo/key-service-api/internal/handler/middleware"
	"github.com/makkenzo/key-service-api/internal/ierr"
	"github.com/makkenzo/key-service-api/internal/service"
)

type KeyHandler struct {
	service *service.KeyService
	logger  *zap.Logger
}

func NewKeyHandler(service *service.KeyService, logger *zap.Logger) *KeyHandler {
	return &KeyHandler{
		service: service,
		logger:  logger.Named("KeyHandler"),
	}
}

func (h *KeyHandler) Create(c *gin.Context) {
	var req dto.CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind create key request", zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}

	k, err := h.service.CreateKey(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewCreateKeyResponse(k))
}

// Validate always answers 200; a rejected key is reported in the body.
func (h *KeyHandler) Validate(c *gin.Context) {
	var req dto.ValidateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind validate key request", zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}

	outcome := h.service.ValidateKey(c.Request.Context(), req.Key)
	c.JSON(http.StatusOK, dto.NewValidateKeyResponse(outcome))
}

func (h *KeyHandler) Get(c *gin.Context) {
	token := c.Param("key")

	resp, err := h.service.GetKey(c.Request.Context(), token)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *KeyHandler) Revoke(c *gin.Context) {
	token := c.Param("key")

	if err := h.service.RevokeKey(c.Request.Context(), token); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.RevokeKeyResponse{
		Message: "Key revoked successfully",
		Key:     token,
	})
}

func (h *KeyHandler) List(c *gin.Context) {
	keys := h.service.ListKeys(c.Request.Context())
	h.logger.Debug("Keys listed via handler", zap.Int("count", len(keys)))
	c.JSON(http.StatusOK, keys)
}

func (h *KeyHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetStats(c.Request.Context()))
}

// Access reports the key that admitted the request through KeyAuthMiddleware.
func (h *KeyHandler) Access(c *gin.Context) {
	outcome, ok := middleware.GetKeyOutcome(c)
	if !ok {
		h.logger.Error("Access handler reached without a key outcome")
		_ = c.Error(ierr.ErrInternalServer)
		return
	}

	c.JSON(http.StatusOK, dto.NewValidateKeyResponse(outcome))
}

// bindError keeps field-level validator errors intact and tags malformed
// bodies as validation failures.
func bindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return err
	}
	return fmt.Errorf("%w: %v", ierr.ErrValidation, err)
}
