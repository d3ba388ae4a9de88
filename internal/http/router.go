package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/config"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/service"
)

// RateLimiter 简单的内存速率限制器
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int           // 最大请求数
	window   time.Duration // 时间窗口
}

// NewRateLimiter 创建速率限制器
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	// 清理过期请求
	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	// 检查是否超过限制
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	// 记录新请求
	rl.requests[key] = append(valid, now)
	return true
}

// RateLimitMiddleware 速率限制中间件
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 使用用户 ID 或 IP 作为限制 key
		key := c.GetString("userID")
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config
}

// 全局速率限制器: 每用户每分钟最多 60 次请求
var userRateLimiter = NewRateLimiter(60, time.Minute)

// 端口申请速率限制器: 每用户每小时最多 20 次申请
// 说明: 配额本身限制持有数量，这里只是挡住暴力扫描端口段的行为
var leaseRateLimiter = NewRateLimiter(20, time.Hour)

func NewServer(cfg *config.Config, portService *service.PortService, trafficService *service.TrafficService, settingsService *service.SettingsService) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	handler := NewHandler(portService, trafficService, settingsService)

	s := &Server{
		router:  router,
		handler: handler,
		cfg:     cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "tunnel-admin-service",
		})
	})

	// User API - requires JWT authentication
	user := s.router.Group("/api/v1")
	user.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	user.Use(RateLimitMiddleware(userRateLimiter)) // 用户 API 速率限制
	{
		// Port lease management
		user.GET("/my/ports", s.handler.GetMyPorts)
		// 申请端口使用更严格的速率限制
		user.POST("/my/ports", RateLimitMiddleware(leaseRateLimiter), s.handler.CreateMyPort)
		user.PUT("/my/ports/:id", s.handler.UpdateMyPort)
		user.DELETE("/my/ports/:id", s.handler.DeleteMyPort)
		user.GET("/my/random-port", s.handler.GetRandomPort) // 随机推荐可用端口

		// Traffic stats
		user.GET("/my/traffic", s.handler.GetMyTraffic)
	}

	// Admin API - JWT + admin flag
	admin := s.router.Group("/api/v1/admin")
	admin.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	admin.Use(AdminOnlyMiddleware())
	{
		admin.GET("/ports", s.handler.ListAllPorts)
		admin.GET("/traffic", s.handler.GetAllTraffic)
		admin.GET("/traffic/series", s.handler.GetTrafficSeries) // 按小时聚合的图表数据

		// 运行时设置 (system_config)
		admin.GET("/settings", s.handler.GetSettings)
		admin.PUT("/settings", s.handler.UpdateSettings)
	}
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}
