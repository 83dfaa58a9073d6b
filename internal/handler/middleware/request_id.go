package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/makkenzo/key-service-api/internal/audit"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "requestID"
)

// RequestID reuses the caller's X-Request-ID or assigns a UUID v7, echoes it
// on the response and stores it on both the gin and request contexts.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}
		c.Header(requestIDHeader, id)
		c.Set(requestIDContextKey, id)
		c.Request = c.Request.WithContext(audit.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDContextKey)
}
