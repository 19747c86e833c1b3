// IntakeService 主程序
// 功能：接收各渠道的商品提交，执行风险评分、内容审核与准入决策
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

	admissionapp "github.com/wyfcoding/marketplace/internal/admission/application"
	admissionclient "github.com/wyfcoding/marketplace/internal/admission/infrastructure/client"
	admissionmsg "github.com/wyfcoding/marketplace/internal/admission/infrastructure/messaging"
	admissionconsumer "github.com/wyfcoding/marketplace/internal/admission/interfaces/consumer"
	admissionhttp "github.com/wyfcoding/marketplace/internal/admission/interfaces/http"
	listingdomain "github.com/wyfcoding/marketplace/internal/listing/domain"
	listingmysql "github.com/wyfcoding/marketplace/internal/listing/infrastructure/persistence/mysql"
	moderationapp "github.com/wyfcoding/marketplace/internal/moderation/application"
	moderationclient "github.com/wyfcoding/marketplace/internal/moderation/infrastructure/client"
	moderationmysql "github.com/wyfcoding/marketplace/internal/moderation/infrastructure/persistence/mysql"
	reviewapp "github.com/wyfcoding/marketplace/internal/review/application"
	reviewdomain "github.com/wyfcoding/marketplace/internal/review/domain"
	reviewmsg "github.com/wyfcoding/marketplace/internal/review/infrastructure/messaging"
	reviewmysql "github.com/wyfcoding/marketplace/internal/review/infrastructure/persistence/mysql"
	riskapp "github.com/wyfcoding/marketplace/internal/risk/application"
	riskmysql "github.com/wyfcoding/marketplace/internal/risk/infrastructure/persistence/mysql"
	riskredis "github.com/wyfcoding/marketplace/internal/risk/infrastructure/persistence/redis"
	riskstorage "github.com/wyfcoding/marketplace/internal/risk/infrastructure/storage"
	sessionapp "github.com/wyfcoding/marketplace/internal/session/application"
	sessionredis "github.com/wyfcoding/marketplace/internal/session/infrastructure/persistence/redis"
	sessionhttp "github.com/wyfcoding/marketplace/internal/session/interfaces/http"
	"github.com/wyfcoding/marketplace/pkg/cache"
	"github.com/wyfcoding/marketplace/pkg/config"
	"github.com/wyfcoding/marketplace/pkg/db"
	"github.com/wyfcoding/marketplace/pkg/logger"
	"github.com/wyfcoding/marketplace/pkg/metrics"
	"github.com/wyfcoding/marketplace/pkg/middleware"
	"github.com/wyfcoding/marketplace/pkg/mq"
	"github.com/wyfcoding/marketplace/pkg/ratelimit"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/intake/config.toml", "path to config file")
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
	logger.Info(ctx, "Starting IntakeService", "service", cfg.ServiceName, "environment", cfg.Environment)

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
		&riskmysql.Account{},
		&riskmysql.AccountLocation{},
		&admissionmsg.OutboxMessage{},
	); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	// 4. 初始化 Redis 与限流器
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
	limiter := ratelimit.NewRedisRateLimiter(redisCache.Client())

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

	batchConsumer, err := mq.NewConsumer(mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
	}, cfg.Kafka.BatchTopic)
	if err != nil {
		logger.Fatal(ctx, "Failed to create Kafka consumer", "error", err)
	}
	defer batchConsumer.Close()
	dlq := mq.NewDeadLetterQueue(producer, cfg.Kafka.DeadLetter)

	// 6. 初始化对象存储
	imageStore, err := riskstorage.NewMinioImageStore(riskstorage.Config{
		Endpoint:  cfg.ObjectStore.Endpoint,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		Bucket:    cfg.ObjectStore.Bucket,
		UseSSL:    cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize object store", "error", err)
	}

	// 7. 初始化指标
	m := metrics.New(cfg.ServiceName)

	// 8. 组装评分引擎
	signalTimeout := cfg.Admission.SignalTimeout()
	historyRepo := riskmysql.NewAccountHistoryRepository(database.DB)
	velocity := riskredis.NewVelocityCounter(redisCache.Client())
	hashIndex := riskmysql.NewImageHashIndex(database.DB)
	riskScorer := riskapp.NewScorer(historyRepo, velocity, hashIndex, imageStore, signalTimeout, m)

	priceRepo := moderationmysql.NewPriceHistoryRepository(database.DB)
	visionClient := moderationclient.NewVisionClient(cfg.Admission.VisionServiceURL, signalTimeout)
	moderationScorer := moderationapp.NewScorer(priceRepo, visionClient, signalTimeout, m)

	// 9. 组装准入服务
	listingRepo := listingmysql.NewListingRepository(database.DB)
	queueRepo := reviewmysql.NewQueueRepository(database.DB)
	reviewOutbox := reviewmsg.NewOutboxRepository(database.DB)
	queueSvc := reviewapp.NewQueueService(queueRepo, listingRepo, database, reviewOutbox, m)

	policyClient := admissionclient.NewPolicyClient(cfg.Admission.PolicyServiceURL, signalTimeout)
	admissionOutbox := admissionmsg.NewOutboxRepository(database.DB)
	admissionSvc := admissionapp.NewService(
		policyClient, limiter, riskScorer, moderationScorer,
		listingRepo, queueSvc, velocity, imageStore,
		database, admissionOutbox, m,
	)

	// 10. 组装会话渠道
	sessionRepo := sessionredis.NewSessionRepository(redisCache)
	sessionManager := sessionapp.NewManager(
		sessionRepo, admissionSvc,
		time.Duration(cfg.Session.SubmitTTLMinutes)*time.Minute,
		time.Duration(cfg.Session.AdminTTLMinutes)*time.Minute,
	)

	// 11. HTTP 服务
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.GinLogging(), middleware.GinRecovery())
	engine.GET("/sys/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}
	admissionhttp.NewAdmissionHandler(admissionSvc, listingRepo).RegisterRoutes(engine)
	sessionhttp.NewSessionHandler(sessionManager).RegisterRoutes(engine)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 12. 启动后台工作者与服务器
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	relay := admissionmsg.NewOutboxRelay(admissionOutbox, producer, cfg.Kafka.EventTopic)
	g.Go(func() error { return relay.Run(gctx) })

	batchHandler := admissionconsumer.NewBatchHandler(admissionSvc, batchConsumer, dlq)
	g.Go(func() error { return batchHandler.Run(gctx) })

	g.Go(func() error {
		logger.Info(gctx, "Starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 13. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info(ctx, "Shutting down IntakeService", "signal", sig.String())
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
	logger.Info(ctx, "IntakeService stopped")
}
