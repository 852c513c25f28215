package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"safepass/backend/config"
	"safepass/backend/internal/api/handler"
	"safepass/backend/internal/api/router"
	"safepass/backend/internal/notify"
	"safepass/backend/internal/realtime"
	"safepass/backend/internal/repository"
	"safepass/backend/internal/service"
	"safepass/backend/pkg/database"
	"safepass/backend/pkg/jwt"
	applogger "safepass/backend/pkg/logger"
	"safepass/backend/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("SAFEPASS_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("mail_driver", cfg.Mail.Driver),
		zap.String("broadcast_driver", cfg.Notify.BroadcastDriver),
	)

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（local 广播驱动下可选：失败时公开登记不限流）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		if cfg.Notify.BroadcastDriver == config.BroadcastRedis {
			logger.Fatal("redis 广播驱动需要可用的 Redis", zap.Error(err))
		}
		logger.Warn("Redis 连接失败，公开登记限流不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 指标注册器
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 6. 通知分发：邮件 + 实时广播
	hub := realtime.NewHub(logger)

	var natsConn *nats.Conn
	if cfg.Notify.BroadcastDriver == config.BroadcastNATS {
		natsConn, err = nats.Connect(cfg.NATS.URL, nats.Name("safepass"), nats.MaxReconnects(-1))
		if err != nil {
			logger.Fatal("NATS 连接失败", zap.String("url", cfg.NATS.URL), zap.Error(err))
		}
		logger.Info("NATS 连接成功", zap.String("url", cfg.NATS.URL))
	}

	// NATS subject 以 . 分隔层级
	natsPrefix := strings.ReplaceAll(cfg.Notify.Channel, ":", ".")

	var broadcaster notify.Broadcaster
	switch cfg.Notify.BroadcastDriver {
	case config.BroadcastRedis:
		broadcaster = notify.NewRedisBroadcaster(rdb, cfg.Notify.Channel)
	case config.BroadcastNATS:
		broadcaster = notify.NewNATSBroadcaster(natsConn, natsPrefix)
	default:
		broadcaster = hub
	}

	dispatcher := notify.NewChannelDispatcher(
		newMailer(cfg, logger),
		broadcaster,
		notify.NewRenderer(cfg.Server.FrontendURL, cfg.App.Location()),
		notify.Options{Async: cfg.Notify.Async, QueueSize: cfg.Notify.QueueSize, Timeout: cfg.Notify.Timeout},
		logger,
		notify.NewMetrics(reg),
	)

	// 7. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	signer := jwt.NewPassSigner(&cfg.GatePass)

	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, signer, dispatcher, logger, service.NewMetrics(reg))
	h := handler.NewHandler(cfg, svc, hub, jwtMgr, logger)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, reg, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 9. 启动 HTTP 服务器与广播中继，收到信号后优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务器异常: %w", err)
		}
		return nil
	})

	switch cfg.Notify.BroadcastDriver {
	case config.BroadcastRedis:
		g.Go(func() error {
			return realtime.RelayRedis(gctx, rdb, cfg.Notify.Channel, hub, logger)
		})
	case config.BroadcastNATS:
		g.Go(func() error {
			return realtime.RelayNATS(gctx, natsConn, natsPrefix, hub, logger)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("开始优雅关闭...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("服务器关闭异常", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("服务异常退出", zap.Error(err))
	}

	// 先排空通知队列，再关闭下游连接
	dispatcher.Close()

	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			logger.Warn("NATS 排空失败", zap.Error(err))
		}
	}
	if rdb != nil {
		rdb.Close()
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}

	logger.Info("服务器已关闭")
}

// newMailer 按 mail.driver 选择邮件实现
func newMailer(cfg *config.Config, logger *zap.Logger) notify.Mailer {
	switch cfg.Mail.Driver {
	case config.MailDriverSMTP:
		return notify.NewSMTPMailer(&cfg.Mail)
	case config.MailDriverMailerSend:
		return notify.NewMailerSendMailer(&cfg.Mail)
	default:
		return notify.NewLogMailer(logger)
	}
}
