package repository

import (
	"context"
	"encoding/json"
	"lms_backend/internal/model"
	"time"

	"github.com/go-redis/redis/v8"
)

const pendingOrderKeyPrefix = "lms:payment:order:"

// RedisOrderCache 保存已创建但未支付的网关订单
type RedisOrderCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisOrderCache(client *redis.Client, ttl time.Duration) *RedisOrderCache {
	return &RedisOrderCache{Client: client, TTL: ttl}
}

func (c *RedisOrderCache) Put(ctx context.Context, order *model.PendingOrder) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, pendingOrderKeyPrefix+order.OrderID, data, c.TTL).Err()
}

// Get 订单不存在或已过期时返回 (nil, nil)
func (c *RedisOrderCache) Get(ctx context.Context, orderID string) (*model.PendingOrder, error) {
	data, err := c.Client.Get(ctx, pendingOrderKeyPrefix+orderID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var order model.PendingOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *RedisOrderCache) Delete(ctx context.Context, orderID string) error {
	return c.Client.Del(ctx, pendingOrderKeyPrefix+orderID).Err()
}
