package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/replyflow/core/internal/pkg/cron"
	"github.com/replyflow/core/internal/pkg/response"
	"gorm.io/gorm"
)

const pingTimeout = 2 * time.Second

// Pinger is anything with a liveness probe, such as the Redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes mounts the public probes and the authenticated cron admin
// endpoints.
func RegisterRoutes(rg *gin.RouterGroup, db *gorm.DB, cache Pinger, sched *cron.Scheduler, authMW gin.HandlerFunc) {
	rg.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": "pong"})
	})

	rg.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()

		dbOK := false
		if sqlDB, err := db.DB(); err == nil {
			dbOK = sqlDB.PingContext(ctx) == nil
		}
		redisOK := cache != nil && cache.Ping(ctx) == nil

		status := "ok"
		code := http.StatusOK
		if !dbOK || !redisOK {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":   status,
			"database": dbOK,
			"redis":    redisOK,
		})
	})

	cronGroup := rg.Group("/health/cron", authMW)
	cronGroup.GET("", func(c *gin.Context) {
		response.OK(c, sched.List())
	})
	cronGroup.POST("/run/:name", func(c *gin.Context) {
		err := sched.Run(c.Request.Context(), c.Param("name"))
		switch {
		case errors.Is(err, cron.ErrJobNotFound):
			response.NotFoundMsg(c, err.Error())
		case err != nil:
			response.InternalError(c, err)
		default:
			response.OK(c, gin.H{"message": "job finished"})
		}
	})
}
