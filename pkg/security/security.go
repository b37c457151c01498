package security

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"
)

// CORS 中间件 仅允许白名单中的Origin，支持Credentials
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && originSet[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// Secure 中间件
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 防止MIME嗅探
		c.Header("X-Content-Type-Options", "nosniff")
		// 防止点击劫持
		c.Header("X-Frame-Options", "DENY")
		// XSS保护
		c.Header("X-XSS-Protection", "1; mode=block")
		// HSTS
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}

		c.Next()
	}
}

// LimiterStore 限流状态存储。进程内 map 在多实例部署下互相不可见，
// 生产环境使用 Redis 实现，单机和测试使用内存实现。
type LimiterStore interface {
	// Allow 判断 key 在当前窗口内是否还允许一次请求
	Allow(key string) bool
}

// memoryLimiterStore 基于 x/time/rate 的内存限流存储，自动清理过期条目
type memoryLimiterStore struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	maxRequests int
	window      time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMemoryLimiterStore(maxRequests int, window time.Duration) LimiterStore {
	s := &memoryLimiterStore{
		visitors:    make(map[string]*visitor),
		maxRequests: maxRequests,
		window:      window,
	}

	go func() {
		expiry := window * 3
		if expiry < time.Minute {
			expiry = time.Minute
		}
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			s.mu.Lock()
			for ip, v := range s.visitors {
				if time.Since(v.lastSeen) > expiry {
					delete(s.visitors, ip)
				}
			}
			s.mu.Unlock()
		}
	}()

	return s
}

func (s *memoryLimiterStore) Allow(key string) bool {
	r := rate.Every(s.window / time.Duration(s.maxRequests))

	s.mu.Lock()
	v, exists := s.visitors[key]
	if !exists {
		v = &visitor{
			limiter: rate.NewLimiter(r, s.maxRequests),
		}
		s.visitors[key] = v
	}
	v.lastSeen = time.Now()
	s.mu.Unlock()

	return v.limiter.Allow()
}

// redisLimiterStore 固定窗口计数器，多实例共享
type redisLimiterStore struct {
	rdb         *redis.Client
	maxRequests int
	window      time.Duration
}

func NewRedisLimiterStore(rdb *redis.Client, maxRequests int, window time.Duration) LimiterStore {
	return &redisLimiterStore{rdb: rdb, maxRequests: maxRequests, window: window}
}

func (s *redisLimiterStore) Allow(key string) bool {
	ctx := context.Background()
	k := "ratelimit:" + key

	count, err := s.rdb.Incr(ctx, k).Result()
	if err != nil {
		// Redis 不可用时放行，限流属于保护机制而非正确性机制
		return true
	}
	if count == 1 {
		s.rdb.Expire(ctx, k, s.window)
	}
	return count <= int64(s.maxRequests)
}

// RateLimiter 限流中间件 按IP限流
func RateLimiter(store LimiterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !store.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		c.Next()
	}
}
