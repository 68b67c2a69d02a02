package controller

import (
	"context"
	"lms_backend/internal/util"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewHealthController(db *gorm.DB, rdb *redis.Client) *HealthController {
	return &HealthController{DB: db, Redis: rdb}
}

// @Summary 健康检查
// @Description 检查数据库与缓存状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	// 缓存不可用时支付订单归属校验会降级，不影响整体可用性
	cache := "disabled"
	if c.Redis != nil {
		cache = "up"
		if err := c.Redis.Ping(pingCtx).Err(); err != nil {
			cache = "down"
		}
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
			"cache":    cache,
		},
	})
}
