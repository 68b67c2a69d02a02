package security

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CORS 中间件 仅允许白名单中的Origin，支持Credentials
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originSet := make(map[string]bool, len(allowedOrigins))
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		originSet[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && (allowAll || originSet[origin]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Secure 中间件
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// visitor 包装限流器和最后活跃时间，用于定期清理
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter 按 key（IP 或用户）分别限流，参数可在运行时调整
type KeyedLimiter struct {
	mu       sync.Mutex
	store    map[string]*visitor
	limit    rate.Limit
	burst    int
	window   time.Duration
	stopOnce sync.Once
	stop     chan struct{}
}

func NewKeyedLimiter(maxRequests int, window time.Duration) *KeyedLimiter {
	l := &KeyedLimiter{
		store: make(map[string]*visitor),
		stop:  make(chan struct{}),
	}
	l.Update(maxRequests, window)
	go l.cleanup()
	return l
}

// Update 调整速率，已有 key 的限流器同步更新
func (l *KeyedLimiter) Update(maxRequests int, window time.Duration) {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = rate.Every(window / time.Duration(maxRequests))
	l.burst = maxRequests
	l.window = window
	for _, v := range l.store {
		v.limiter.SetLimit(l.limit)
		v.limiter.SetBurst(l.burst)
	}
}

func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	v, exists := l.store[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.store[key] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()

	return v.limiter.Allow()
}

// Wait 阻塞直到该 key 获得令牌或 ctx 结束
func (l *KeyedLimiter) Wait(ctx context.Context, key string) error {
	l.mu.Lock()
	v, exists := l.store[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.store[key] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()

	return v.limiter.Wait(ctx)
}

func (l *KeyedLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *KeyedLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			expiry := l.window * 3
			if expiry < time.Minute {
				expiry = time.Minute
			}
			for key, v := range l.store {
				if time.Since(v.lastSeen) > expiry {
					delete(l.store, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Middleware keyFn 返回空串时跳过限流
func (l *KeyedLimiter) Middleware(keyFn func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key != "" && !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}

// RateLimiter 按IP限流
func RateLimiter(maxRequests int, window time.Duration) gin.HandlerFunc {
	return NewKeyedLimiter(maxRequests, window).Middleware(func(c *gin.Context) string {
		return c.ClientIP()
	})
}
