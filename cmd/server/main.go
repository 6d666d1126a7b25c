package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"bzwops/config"
	"bzwops/internal/api/handler"
	"bzwops/internal/api/router"
	"bzwops/internal/hook"
	"bzwops/internal/notify"
	"bzwops/internal/repository"
	"bzwops/internal/scheduler"
	"bzwops/internal/service"
	"bzwops/pkg/database"
	"bzwops/pkg/jwt"
	applogger "bzwops/pkg/logger"
	"bzwops/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（缺省查找 ./config/config.yaml）")
	generateNow := flag.Bool("generate-now", false, "启动时立即按模板生成一次任务")
	flag.Parse()

	// 0. 加载 .env（可选，仅本地开发使用）
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "加载 .env 失败: %v\n", err)
	}

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
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
		zap.String("timezone", cfg.Tasks.Location().String()),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单、限流、缓存与通知广播将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 6. 依赖注入: Repository → Notifier → Service → Handler
	repo := repository.NewRepository(db)

	var mailer notify.Mailer
	if m := notify.NewSMTPMailer(&cfg.Mail); m != nil {
		mailer = m
	} else {
		logger.Info("未配置 SMTP，通知只写入站内信")
	}
	var pub notify.Publisher
	if rdb != nil {
		pub = rdb
	}
	notifier := notify.NewService(repo.Notification, mailer, pub, &cfg.Mail, logger)

	hooks := hook.NewDispatcher(logger)
	svc := service.NewService(cfg, repo, jwtMgr, rdb, notifier, hooks, logger)
	h := handler.NewHandler(svc)

	// 7. 启动任务生成调度
	sched := scheduler.New(&cfg.Tasks, svc.Template, logger)
	if err := sched.Start(*generateNow); err != nil {
		logger.Fatal("启动任务生成调度失败", zap.Error(err))
	}

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, db, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	sched.Stop(ctx)

	// 关闭数据库连接
	if closeDB, _ := db.DB(); closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
