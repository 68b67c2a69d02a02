package database

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/pkg/logger"
	"net"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// InitRedis 连接待支付订单缓存，Host 为空视为未启用
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("redis host not configured")
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrapf(err, "ping redis %s", addr)
	}

	logger.Log.Info("Redis connection established", zap.String("addr", addr), zap.Int("db", cfg.DB))
	return rdb, nil
}
