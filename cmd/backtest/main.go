// BacktestService 主程序
// 功能：受理回测任务，驱动确定性回测引擎并持久化任务与报告
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/tradingengine/internal/backtest/application"
	"github.com/wyfcoding/tradingengine/internal/backtest/domain"
	btcache "github.com/wyfcoding/tradingengine/internal/backtest/infrastructure/cache"
	btmysql "github.com/wyfcoding/tradingengine/internal/backtest/infrastructure/persistence/mysql"
	bthttp "github.com/wyfcoding/tradingengine/internal/backtest/interfaces/http"
	catalogmysql "github.com/wyfcoding/tradingengine/internal/catalog/infrastructure/persistence/mysql"
	"github.com/wyfcoding/tradingengine/internal/model"
	"github.com/wyfcoding/tradingengine/internal/strategy/emacross"
	pkgcache "github.com/wyfcoding/tradingengine/pkg/cache"
	"github.com/wyfcoding/tradingengine/pkg/config"
	"github.com/wyfcoding/tradingengine/pkg/db"
	"github.com/wyfcoding/tradingengine/pkg/logger"
	"github.com/wyfcoding/tradingengine/pkg/metrics"
	"github.com/wyfcoding/tradingengine/pkg/middleware"
	"github.com/wyfcoding/tradingengine/pkg/ratelimit"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/backtest/config.toml", "path to config file")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadWithDefaults(configPath)
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
	logger.Info(ctx, "Starting BacktestService",
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

	if err := btmysql.Migrate(database.DB); err != nil {
		logger.Fatal(ctx, "Failed to migrate backtest tables", "error", err)
	}
	if err := catalogmysql.Migrate(database.DB); err != nil {
		logger.Fatal(ctx, "Failed to migrate catalog tables", "error", err)
	}

	// 4. 仓储与目录
	var repo domain.BacktestRepository = btmysql.NewBacktestRepository(database.DB)
	catalog := catalogmysql.NewCatalogRepository(database.DB)

	// 报告查询挂 Redis 读缓存，Redis 不可用时退回直查，限流一并禁用
	var rateLimiter ratelimit.RateLimiter
	if redisCache, err := pkgcache.New(pkgcache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}); err != nil {
		logger.Warn(ctx, "Redis unavailable, report cache disabled", "error", err)
	} else {
		repo = btcache.NewCachedRepository(repo, redisCache, 24*time.Hour)
		rateLimiter = ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		defer redisCache.Close()
	}

	// 5. 指标
	m := metrics.New(cfg.ServiceName)
	if err := m.Register(); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
		logger.Fatal(ctx, "Failed to start metrics HTTP server", "error", err)
	}

	// 6. 应用服务与内置策略
	svc := application.NewBacktestService(repo, catalog, m)
	svc.RegisterStrategy("ema-cross", func() domain.Strategy {
		return emacross.New(emacross.Config{
			StrategyID: "ema-cross",
			BarType: model.BarType{
				InstrumentID: model.NewInstrumentID("AUD/USD", "SIM"),
				Spec: model.BarSpec{
					Step:        1,
					Aggregation: model.BarAggregationMinute,
					PriceType:   model.PriceTypeLast,
				},
			},
			FastPeriod: 10,
			SlowPeriod: 20,
			TradeSize:  model.NewQuantityFromFloat(100000, 0),
		})
	})

	// 7. HTTP 服务器
	router := gin.New()
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	if rateLimiter != nil {
		router.Use(middleware.RateLimitMiddleware(rateLimiter, cfg.RateLimit))
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})
	bthttp.NewBacktestHandler(svc).RegisterRoutes(&router.RouterGroup)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	// 8. 优雅关停
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down BacktestService")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}
	logger.Info(ctx, "BacktestService stopped")
}
