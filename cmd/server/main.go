package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/cfledger/internal/config"
	"github.com/blues/cfledger/internal/database"
	"github.com/blues/cfledger/internal/ethereum"
	"github.com/blues/cfledger/internal/event"
	"github.com/blues/cfledger/internal/ledger"
	"github.com/blues/cfledger/internal/logger"
	"github.com/blues/cfledger/internal/logic"
	"github.com/blues/cfledger/internal/router"
	"github.com/blues/cfledger/internal/scheduler"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 托管后端：启用链上出款时使用托管账户，否则使用内存钱包
	var backend ledger.Custodian
	var payout *ethereum.Payout
	var wallet *ledger.Wallet
	if cfg.Chain.Enabled {
		payout, err = ethereum.Init(cfg.Chain)
		if err != nil {
			logger.Fatal("Failed to initialize ethereum client: %v", err)
		}
		logger.Info("Payouts sent from escrow account %s on chain %d", payout.GetAccountAddress().Hex(), cfg.Chain.ChainId)
		backend = payout
	} else {
		logger.Warn("Chain payouts disabled, using in-memory wallet (balances are not persisted)")
		wallet = ledger.NewWallet()
		balances, err := cfg.Wallet.InitialBalances()
		if err != nil {
			logger.Fatal("Invalid wallet balances: %v", err)
		}
		for addr, amount := range balances {
			wallet.Deposit(addr, amount)
		}
		backend = wallet
	}

	// 事件分发
	dispatcher, err := event.NewDispatcher(cfg.Event.PoolSize)
	if err != nil {
		logger.Fatal("Failed to create event dispatcher: %v", err)
	}

	// 初始化数据库镜像
	var db *gorm.DB
	var journal *event.JournalProcessor
	var mirror *event.CampaignProcessor
	var eventLogic *logic.EventLogic
	if cfg.Database.Enabled {
		db, err = database.Init(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to initialize database: %v", err)
		}
		codec, err := ethereum.NewEventCodec()
		if err != nil {
			logger.Fatal("Failed to create event codec: %v", err)
		}

		eventLogic = logic.NewEventLogic(db)
		journal = event.NewJournalProcessor(codec, eventLogic)
		mirror = event.NewCampaignProcessor(logic.NewCampaignLogic(db))
		dispatcher.Register(journal)
		dispatcher.Register(mirror)
	}

	// 初始化账本
	l, err := ledger.New(ledger.Config{
		FeeBasisPoints: cfg.Ledger.FeeBps,
		FeeReceiver:    cfg.FeeReceiverAddress(),
	}, backend, ledger.WithSinks(dispatcher))
	if err != nil {
		logger.Fatal("Failed to initialize ledger: %v", err)
	}

	// 从事件日志恢复账本，之后的事件从 LastSeq+1 继续分发
	if journal != nil {
		events, err := journal.Load()
		if err != nil {
			logger.Fatal("Failed to load event journal: %v", err)
		}
		if err := l.Restore(events); err != nil {
			logger.Fatal("Failed to restore ledger: %v", err)
		}
		dispatcher.Resume(l.LastSeq())
	}
	if wallet != nil {
		wallet.FundEscrow(l.Escrowed(context.Background()))
	}

	// 启动定时任务
	manager, err := scheduler.NewManager()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}
	interval := time.Duration(cfg.Task.Interval) * time.Second
	var marker scheduler.FailedMarker
	if db != nil {
		marker = logic.NewCampaignLogic(db)
		if err := manager.Register(scheduler.NewEventReplayJob(eventLogic, journal, mirror, interval)); err != nil {
			logger.Fatal("%v", err)
		}
	}
	if err := manager.Register(scheduler.NewCampaignStatusJob(l, marker, interval)); err != nil {
		logger.Fatal("%v", err)
	}
	if payout != nil {
		if err := manager.Register(scheduler.NewPayoutReconcileJob(payout, interval)); err != nil {
			logger.Fatal("%v", err)
		}
	}
	manager.Start()

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.Setup(l, db),
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
	manager.Stop()
	dispatcher.Stop()
}
