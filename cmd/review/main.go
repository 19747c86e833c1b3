// ReviewService 主程序
// 功能：审核队列工作台与社区举报：排序、裁决、升级与奖励发放
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

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	listingmysql "github.com/wyfcoding/marketplace/internal/listing/infrastructure/persistence/mysql"
	reviewapp "github.com/wyfcoding/marketplace/internal/review/application"
	reviewdomain "github.com/wyfcoding/marketplace/internal/review/domain"
	reviewmsg "github.com/wyfcoding/marketplace/internal/review/infrastructure/messaging"
	reviewmysql "github.com/wyfcoding/marketplace/internal/review/infrastructure/persistence/mysql"
	reviewredis "github.com/wyfcoding/marketplace/internal/review/infrastructure/persistence/redis"
	reviewhttp "github.com/wyfcoding/marketplace/internal/review/interfaces/http"
	"github.com/wyfcoding/marketplace/pkg/cache"
	"github.com/wyfcoding/marketplace/pkg/config"
	"github.com/wyfcoding/marketplace/pkg/db"
	"github.com/wyfcoding/marketplace/pkg/logger"
	"github.com/wyfcoding/marketplace/pkg/metrics"
	"github.com/wyfcoding/marketplace/pkg/middleware"
	"github.com/wyfcoding/marketplace/pkg/mq"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/review/config.toml", "path to config file")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting ReviewService", "service", cfg.ServiceName, "environment", cfg.Environment)

	// 3. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(
		&listingdomain.Listing{},
		&listingdomain.ListingImage{},
		&reviewdomain.QueueEntry{},
		&reviewdomain.CommunityReport{},
		&reviewdomain.RewardGrant{},
		&reviewmsg.OutboxMessage{},
	); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	// 4. 初始化 Redis
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
	}
	defer redisCache.Close()

	// 5. 初始化 Kafka
	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to create Kafka producer", "error", err)
	}
	defer producer.Close()

	// 6. 初始化指标
	m := metrics.New(cfg.ServiceName)

	// 7. 组装应用服务
	listingRepo := listingmysql.NewListingRepository(database.DB)
	queueRepo := reviewmysql.NewQueueRepository(database.DB)
	reportRepo := reviewmysql.NewReportRepository(database.DB)
	rewardRepo := reviewmysql.NewRewardRepository(database.DB)
	window := reviewredis.NewReportWindowCounter(redisCache)
	outbox := reviewmsg.NewOutboxRepository(database.DB)

	queueSvc := reviewapp.NewQueueService(queueRepo, listingRepo, database, outbox, m)
	reportSvc := reviewapp.NewReportService(reportRepo, queueRepo, rewardRepo, window, listingRepo, queueSvc, database, outbox, m)

	// 8. HTTP 服务
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.GinLogging(), middleware.GinRecovery())
	engine.GET("/sys/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}
	reviewhttp.NewReviewHandler(queueSvc, reportSvc).RegisterRoutes(engine)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 9. 启动发件箱中继与服务器
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	relay := reviewmsg.NewOutboxRelay(outbox, producer, cfg.Kafka.EventTopic)
	g.Go(func() error { return relay.Run(gctx) })

	g.Go(func() error {
		logger.Info(gctx, "Starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 10. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info(ctx, "Shutting down ReviewService", "signal", sig.String())
	case <-gctx.Done():
		logger.Error(ctx, "Background worker failed", "error", gctx.Err())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "Worker exited with error", "error", err)
	}
	logger.Info(ctx, "ReviewService stopped")
}
