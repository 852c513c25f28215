package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"safepass/backend/config"
	"safepass/backend/internal/api/handler"
	"safepass/backend/internal/api/middleware"
	"safepass/backend/internal/dto"
	"safepass/backend/pkg/jwt"
	"safepass/backend/pkg/redis"
)

const (
	maxBodyBytes = 1 << 20
	// 公开登记每个 IP 每分钟最多 10 次
	registerLimit  = 10
	registerWindow = time.Minute
)

const (
	admin    = middleware.RoleAdmin
	host     = middleware.RoleHost
	security = middleware.RoleSecurity
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时公开登记不限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, reg *prometheus.Registry, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := dto.RegisterValidators(v); err != nil {
			logger.Error("注册自定义校验器失败", zap.Error(err))
		}
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger, "/health", "/metrics"))
	r.Use(middleware.Metrics(middleware.NewHTTPMetrics(reg)))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// ── 实时推送（Token 走 query） ──
	r.GET("/ws", h.Realtime.ServeWS)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 公开登记（无需认证）
		v1.POST("/visitors", middleware.RateLimit(rdb, registerLimit, registerWindow, logger), h.Visitor.Register)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr))
		{
			// 访客模块
			visitors := authorized.Group("/visitors")
			{
				visitors.GET("", middleware.RoleAuth(admin, security), h.Visitor.List)
				visitors.GET("/stats", h.Visitor.Stats)
				visitors.GET("/trends", h.Visitor.Trends)
				visitors.GET("/host/pending", middleware.RoleAuth(host), h.Visitor.HostPending)
				visitors.GET("/host/all", middleware.RoleAuth(host), h.Visitor.HostAll)
				visitors.GET("/:id", h.Visitor.Get)
				visitors.PUT("/:id", middleware.RoleAuth(admin, host), h.Visitor.Update)
				visitors.DELETE("/:id", middleware.RoleAuth(admin), h.Visitor.Delete)

				visitors.PATCH("/:id/approve", middleware.RoleAuth(host, admin), h.Visitor.Approve)
				visitors.PATCH("/:id/reject", middleware.RoleAuth(host, admin), h.Visitor.Reject)
				visitors.PATCH("/:id/check-in", middleware.RoleAuth(security), h.Visitor.CheckIn)
				visitors.PATCH("/:id/check-out", middleware.RoleAuth(security), h.Visitor.CheckOut)
				visitors.POST("/:id/check-in-record", middleware.RoleAuth(security), h.Visitor.RecordCheckIn)
				visitors.POST("/:id/check-out-record", middleware.RoleAuth(security), h.Visitor.RecordCheckOut)

				visitors.POST("/:id/flag", middleware.RoleAuth(security, admin), h.Incident.Flag)
				visitors.POST("/:id/report", middleware.RoleAuth(security, admin), h.Incident.Report)
				visitors.GET("/:id/gate-passes", h.GatePass.ListByVisitor)
			}

			// 出入登记流水
			records := authorized.Group("/check-in-records", middleware.RoleAuth(admin, security))
			{
				records.GET("", h.Ledger.List)
				records.GET("/export", h.Ledger.Export)
			}

			// 安全事件模块
			flags := authorized.Group("/flagged-visitors")
			{
				flags.GET("", middleware.RoleAuth(security, admin), h.Incident.ListFlags)
				flags.PATCH("/:id/resolve", middleware.RoleAuth(admin), h.Incident.ResolveFlag)
			}
			reports := authorized.Group("/suspicious-reports")
			{
				reports.GET("", middleware.RoleAuth(security, admin), h.Incident.ListReports)
				reports.PATCH("/:id/status", middleware.RoleAuth(admin), h.Incident.UpdateReportStatus)
			}

			// 门禁通行证模块
			passes := authorized.Group("/gate-passes")
			{
				passes.POST("/verify", middleware.RoleAuth(security), h.GatePass.Verify)
				passes.GET("/:number", h.GatePass.Get)
				passes.PATCH("/:number/revoke", middleware.RoleAuth(admin), h.GatePass.Revoke)
			}
		}
	}

	return r
}
