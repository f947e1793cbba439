// EngineService 主程序
// 功能：实盘模式执行引擎，行情与订单回报经漏斗队列汇入单写者事件环，
// 引擎事件投影到 Kafka，成交流水由消费者落库
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	accountdomain "github.com/wyfcoding/tradingengine/internal/account/domain"
	"github.com/wyfcoding/tradingengine/internal/clock"
	executionapp "github.com/wyfcoding/tradingengine/internal/execution/application"
	executiondomain "github.com/wyfcoding/tradingengine/internal/execution/domain"
	executionmysql "github.com/wyfcoding/tradingengine/internal/execution/infrastructure/persistence/mysql"
	"github.com/wyfcoding/tradingengine/internal/execution/infrastructure/messaging"
	"github.com/wyfcoding/tradingengine/internal/execution/interfaces/consumer"
	matchingdomain "github.com/wyfcoding/tradingengine/internal/matching/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
	"github.com/wyfcoding/tradingengine/internal/venue/sim"
	"github.com/wyfcoding/tradingengine/pkg/config"
	"github.com/wyfcoding/tradingengine/pkg/db"
	"github.com/wyfcoding/tradingengine/pkg/logger"
	"github.com/wyfcoding/tradingengine/pkg/metrics"
	"github.com/wyfcoding/tradingengine/pkg/mq"
	"github.com/wyfcoding/tradingengine/pkg/utils"

	"github.com/shopspring/decimal"
)

const (
	accountID = model.AccountID("SIM-001")
	venueName = model.Venue("SIM")
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/engine/config.toml", "path to config file")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger.Info(ctx, "Starting EngineService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 指标
	m := metrics.New(cfg.ServiceName)
	if err := m.Register(); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
		logger.Fatal(ctx, "Failed to start metrics HTTP server", "error", err)
	}

	// 4. 引擎栈：缓存、总线、执行引擎
	clk := clock.NewLiveClock()
	cache := executiondomain.NewCache()
	bus := executiondomain.NewMessageBus()
	exec := executionapp.NewExecutionEngine(accountID, model.OmsNetting, clk, cache, bus, m)

	cache.AddAccount(accountdomain.NewAccount(accountID))
	inst := audUsd()
	cache.AddInstrument(inst)

	// 5. Kafka 事件投影
	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    cfg.Kafka.GroupID,
		Partitions: cfg.Kafka.Partitions,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to create kafka producer", "error", err)
	}
	defer producer.Close()
	messaging.NewKafkaEventPublisher(producer).Attach(bus)

	// 6. 模拟场所：撮合引擎回报经漏斗队列汇入执行引擎
	fillModel := matchingdomain.NewFillModel(1, 0, 1)
	engine := matchingdomain.NewEngine(venueName, accountID, clk, fillModel, func(ev orderdomain.OrderEvent) {
		if !exec.Enqueue(ev) {
			logger.Error(ctx, "event funnel full, dropping event",
				"event_type", ev.EventType(), "order_id", ev.OrderID())
		}
	})
	engine.AddInstrument(inst, model.BookTypeL1)

	adapter := sim.NewAdapter(engine,
		func() *accountdomain.AccountState {
			acct, _ := cache.Account(accountID)
			return &accountdomain.AccountState{
				AccountID: accountID,
				Balances:  acct.Balances(),
				TsEvent:   clk.Now(),
			}
		},
		func(s *accountdomain.AccountState) {
			if acct, ok := cache.Account(s.AccountID); ok {
				if err := acct.ApplyState(s); err != nil {
					logger.Warn(ctx, "reported account state dropped", "error", err)
					return
				}
			}
			bus.Publish(executiondomain.TopicAccountEvents, s)
		},
	)
	exec.RegisterVenue(venueName, adapter)
	if err := adapter.Connect(ctx); err != nil {
		logger.Fatal(ctx, "Failed to connect venue adapter", "error", err)
	}

	exec.Run(ctx)

	// 7. 成交流水投影消费者
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
	if err := executionmysql.MigrateFills(database.DB); err != nil {
		logger.Fatal(ctx, "Failed to migrate fill tables", "error", err)
	}

	fillConsumer, err := mq.NewConsumer(mq.KafkaConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
	}, messaging.TopicOrderEvents)
	if err != nil {
		logger.Fatal(ctx, "Failed to create kafka consumer", "error", err)
	}
	defer fillConsumer.Close()

	handler := consumer.NewEventProjectionHandler(executionmysql.NewFillRepository(database.DB))
	go consumeFills(ctx, fillConsumer, handler)

	// 8. 优雅关停
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down EngineService")
	cancel()
	exec.Stop()
	if err := adapter.Disconnect(context.Background()); err != nil {
		logger.Error(ctx, "venue adapter disconnect error", "error", err)
	}
	logger.Info(ctx, "EngineService stopped")
}

// consumeFills 逐条消费订单事件并投影成交流水
func consumeFills(ctx context.Context, c *mq.KafkaConsumer, h *consumer.EventProjectionHandler) {
	for {
		msg, err := c.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error(ctx, "failed to read kafka message", "error", err)
			continue
		}
		// 数据库抖动时先退避重试，避免把瞬时故障当坏消息跳过
		if err := utils.RetryWithBackoff(3, 100*time.Millisecond, time.Second, func() error {
			return h.Handle(ctx, msg)
		}); err != nil {
			logger.Error(ctx, "failed to project event", "offset", msg.Offset, "error", err)
			continue
		}
		if err := c.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "failed to commit kafka message", "error", err)
		}
	}
}

func audUsd() *model.Instrument {
	inc, _ := model.NewPriceFromString("0.00001", 5)
	return &model.Instrument{
		ID:                 model.NewInstrumentID("AUD/USD", "SIM"),
		BaseCurrency:       "AUD",
		QuoteCurrency:      "USD",
		SettlementCurrency: "USD",
		PricePrecision:     5,
		SizePrecision:      0,
		PriceIncrement:     inc,
		MakerFeeRate:       decimal.RequireFromString("-0.00025"),
		TakerFeeRate:       decimal.RequireFromString("0.00035"),
	}
}
