package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/lk2023060901/xdooria-combat/pkg/cache/lru"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/web/errors"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// RequestsPerSecond 每个客户端每秒请求数
	RequestsPerSecond float64
	// Burst 突发容量
	Burst int
	// MaxClients 同时跟踪的客户端上限
	MaxClients int
	// ClientTTL 客户端限流器闲置过期时间
	ClientTTL time.Duration
	// SkipPaths 跳过的路径
	SkipPaths []string
	// KeyFunc 自定义限流键，默认按客户端 IP
	KeyFunc func(*gin.Context) string
}

// RateLimiter 按键限流器
type RateLimiter struct {
	cfg      *RateLimitConfig
	limiters *lru.LRU[string, *rate.Limiter]
	logger   logger.Logger
}

// NewRateLimiter 创建限流器
func NewRateLimiter(l logger.Logger, cfg *RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:    cfg,
		logger: l,
		limiters: lru.New[string, *rate.Limiter](lru.Config{
			MaxSize: cfg.MaxClients,
			TTL:     cfg.ClientTTL,
		}),
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiters.GetOrCreate(key, func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)
	}).Allow()
}

// RateLimit 限流中间件
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	skipPaths := make(map[string]struct{}, len(limiter.cfg.SkipPaths))
	for _, path := range limiter.cfg.SkipPaths {
		skipPaths[path] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, skip := skipPaths[path]; skip {
			c.Next()
			return
		}

		key := c.ClientIP()
		if limiter.cfg.KeyFunc != nil {
			key = limiter.cfg.KeyFunc(c)
		}

		if !limiter.Allow(key) {
			limiter.logger.Warn("rate limit exceeded", "key", key, "path", path)
			c.Header("Retry-After", strconv.Itoa(1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    errors.CodeRateLimited,
				"message": "too many requests",
				"data":    nil,
			})
			return
		}
		c.Next()
	}
}
