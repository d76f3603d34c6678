// CommerceService 主程序
// 功能：购物车、订单结算、手续费计算与支付对账
// 架构：DDD 分层 + MySQL 事务一致性 + Redis 去重限流 + Kafka 领域事件
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	cartapp "github.com/wyfcoding/ecommerce/internal/cart/application"
	cartdomain "github.com/wyfcoding/ecommerce/internal/cart/domain"
	cartmysql "github.com/wyfcoding/ecommerce/internal/cart/infrastructure/persistence/mysql"
	carthttp "github.com/wyfcoding/ecommerce/internal/cart/interfaces/http"
	catalogdomain "github.com/wyfcoding/ecommerce/internal/catalog/domain"
	catalogmysql "github.com/wyfcoding/ecommerce/internal/catalog/infrastructure/persistence/mysql"
	feedomain "github.com/wyfcoding/ecommerce/internal/feemanagement/domain"
	orderapp "github.com/wyfcoding/ecommerce/internal/order/application"
	orderdomain "github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/internal/order/infrastructure/messaging"
	ordermysql "github.com/wyfcoding/ecommerce/internal/order/infrastructure/persistence/mysql"
	orderhttp "github.com/wyfcoding/ecommerce/internal/order/interfaces/http"
	paymentapp "github.com/wyfcoding/ecommerce/internal/payment/application"
	"github.com/wyfcoding/ecommerce/internal/payment/infrastructure/stripe"
	paymenthttp "github.com/wyfcoding/ecommerce/internal/payment/interfaces/http"
	"github.com/wyfcoding/ecommerce/pkg/cache"
	"github.com/wyfcoding/ecommerce/pkg/config"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
	"github.com/wyfcoding/ecommerce/pkg/middleware"
	"github.com/wyfcoding/ecommerce/pkg/mq"
	"github.com/wyfcoding/ecommerce/pkg/ratelimit"
)

func main() {
	// 1. 加载配置
	configPath := os.Getenv("APP_CONFIG")
	if configPath == "" {
		configPath = "configs/commerce/config.toml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting CommerceService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

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
		&catalogdomain.Product{},
		&cartdomain.Cart{},
		&cartdomain.CartItem{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
	); err != nil {
		logger.Fatal(ctx, "Failed to migrate database schema", "error", err)
	}

	// 4. 初始化 Redis
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
	}
	defer redisCache.Close()

	// 5. 初始化限流器
	rateLimiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())

	// 6. 初始化 Kafka 事件发布（未配置 broker 时禁用）
	orderPublisher := messaging.NewNopPublisher()
	paymentPublisher := messaging.NewNopPublisher()
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to create Kafka producer", "error", err)
		}
		defer producer.Close()
		orderPublisher = messaging.NewKafkaPublisher(producer, cfg.Kafka.OrderTopic)
		paymentPublisher = messaging.NewKafkaPublisher(producer, cfg.Kafka.PaymentTopic)
	}

	// 7. 装配费率表
	feeTable := buildFeeTable(cfg.Fees)

	// 8. 初始化仓储与事务管理器
	productRepo := catalogmysql.NewProductRepository(database.DB)
	cartRepo := cartmysql.NewCartRepository(database.DB)
	orderRepo := ordermysql.NewOrderRepository(database.DB)
	txManager := ordermysql.NewTransactionManager(database.DB)

	// 9. 初始化应用服务
	cartService := cartapp.NewCartService(cartRepo, productRepo)
	orderService := orderapp.NewOrderService(orderRepo, cartRepo, productRepo, feeTable, txManager, orderPublisher)
	orderQueries := orderapp.NewOrderQueryService(orderRepo)

	stripeClient := stripe.NewClient(cfg.Payment.SecretKey, cfg.Payment.WebhookSecret)
	paymentService := paymentapp.NewPaymentService(
		orderRepo, txManager, feeTable, stripeClient, redisCache, paymentPublisher, cfg.Payment.Currency)

	// 10. 初始化指标
	metricsInstance := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		if err := metricsInstance.Register(); err != nil {
			logger.Fatal(ctx, "Failed to register metrics", "error", err)
		}
		if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Fatal(ctx, "Failed to start metrics HTTP server", "error", err)
		}
	}

	// 11. 创建 HTTP 服务器
	httpServer := createHTTPServer(cfg, rateLimiter, metricsInstance,
		cartService, orderService, orderQueries, paymentService)

	go func() {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	// 12. 优雅关停
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down CommerceService")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}

	logger.Info(ctx, "CommerceService stopped")
}

// buildFeeTable 从配置装配不可变费率表
func buildFeeTable(entries map[string]config.FeeConfig) *feedomain.FeeTable {
	methods := make(map[feedomain.PaymentMethod]feedomain.MethodFee, len(entries))
	for method, fee := range entries {
		methods[feedomain.PaymentMethod(method)] = feedomain.MethodFee{
			Name:     fee.Name,
			Rate:     decimal.NewFromFloat(fee.Rate),
			FixedFee: decimal.New(fee.FixedFeeCents, -2),
		}
	}
	return feedomain.NewFeeTable(methods)
}

// createHTTPServer 创建 HTTP 服务器并注册全部路由
func createHTTPServer(
	cfg *config.Config,
	rateLimiter ratelimit.RateLimiter,
	m *metrics.Metrics,
	cartService *cartapp.CartService,
	orderService *orderapp.OrderService,
	orderQueries *orderapp.OrderQueryService,
	paymentService *paymentapp.PaymentService,
) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.RateLimitMiddleware(rateLimiter, cfg.RateLimit))

	carthttp.NewCartHandler(cartService).RegisterRoutes(router)
	orderhttp.NewOrderHandler(orderService, orderQueries, m).RegisterRoutes(router)
	paymenthttp.NewPaymentHandler(paymentService, m).RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}
