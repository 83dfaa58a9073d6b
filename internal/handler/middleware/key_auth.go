package middleware

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/makkenzo/key-service-api/internal/domain/key"
	"github.com/makkenzo/key-service-api/internal/ierr"
)

const (
	keyHeader            = "X-API-Key"
	keyOutcomeContextKey = "keyOutcome"
)

type keyValidator interface {
	ValidateKey(ctx context.Context, token string) key.Outcome
}

// KeyAuthMiddleware gates a route on an issued key. Each admitted request
// consumes one use of the key.
func KeyAuthMiddleware(validator keyValidator, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("KeyAuthMiddleware")
	return func(c *gin.Context) {
		token := c.GetHeader(keyHeader)
		if token == "" {
			log.Debug("Key header is missing", zap.String("header", keyHeader))
			_ = c.Error(fmt.Errorf("%w: %s header required", ierr.ErrUnauthorized, keyHeader))
			c.Abort()
			return
		}

		outcome := validator.ValidateKey(c.Request.Context(), token)
		if !outcome.Valid() {
			log.Warn("Key rejected",
				zap.String("key", key.MaskToken(token)),
				zap.String("status", string(outcome.Status)),
			)
			_ = c.Error(fmt.Errorf("%w: %s", ierr.ErrForbidden, outcome.Status.Reason()))
			c.Abort()
			return
		}

		c.Set(keyOutcomeContextKey, outcome)
		c.Next()
	}
}

func GetKeyOutcome(c *gin.Context) (key.Outcome, bool) {
	value, exists := c.Get(keyOutcomeContextKey)
	if !exists {
		return key.Outcome{}, false
	}
	outcome, ok := value.(key.Outcome)
	return outcome, ok
}
