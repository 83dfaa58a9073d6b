package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type dependencyCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]dependencyCheck
	logger *zap.Logger
	now    func() time.Time
}

// NewHealthHandler pings only the dependencies that are configured; either
// argument may be nil.
func NewHealthHandler(db *pgxpool.Pool, rdb *redis.Client, logger *zap.Logger) *HealthHandler {
	checks := make(map[string]dependencyCheck)
	if db != nil {
		checks["database"] = db.Ping
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return &HealthHandler{
		checks: checks,
		logger: logger.Named("HealthHandler"),
		now:    time.Now,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	healthy := true
	dependencies := gin.H{}
	for name, check := range h.checks {
		status := "ok"
		if err := check(ctx); err != nil {
			status = "error"
			healthy = false
			h.logger.Error("Health check: dependency ping failed", zap.String("dependency", name), zap.Error(err))
		}
		dependencies[name] = status
	}

	body := gin.H{
		"status":       "healthy",
		"timestamp":    h.now().UTC(),
		"dependencies": dependencies,
	}
	if !healthy {
		body["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
