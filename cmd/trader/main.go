package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"breakout/internal/binance"
	"breakout/internal/config"
	cronrunner "breakout/internal/cron"
	"breakout/internal/db"
	"breakout/internal/engine"
	"breakout/internal/handler"
	"breakout/internal/logger"
	"breakout/internal/notify"
	gormrepository "breakout/internal/repository/gorm"
	"breakout/internal/service"
)

func main() {
	cfgPath := os.Getenv("BRK_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("BRK_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The journal is optional: without a DSN, runs and fills live in memory only.
	var store *gormrepository.Repo
	var dbConn *db.DB
	if cfg.DB.DSN != "" {
		dbConn, err = db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(dbConn)
		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		store = gormrepository.New(dbConn.Gorm)
	} else {
		logger.Info("journal disabled (no db dsn)")
	}

	binanceHTTP := &http.Client{Timeout: cfg.Binance.Timeout}
	client := binance.NewClient(binanceHTTP, cfg.Binance)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tn, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.Warn("telegram setup failed, notifications disabled", zap.Error(err))
		} else {
			notifier = tn
		}
	}

	var priceStream *service.PriceStreamService
	if cfg.PriceStream.Enabled {
		priceStream = &service.PriceStreamService{
			Logger:     logger,
			URL:        cfg.PriceStream.URL,
			StaleAfter: cfg.PriceStream.StaleAfter,
		}
		go func() {
			if err := priceStream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("price stream stopped", zap.Error(err))
			}
		}()
	}

	manager := engine.NewRunManager(ctx)
	manager.Logger = logger
	manager.Notify = notifier
	manager.Client = client
	manager.Defaults = cfg.Engine
	manager.NewNotifier = func(token string, chatID int64) (notify.Notifier, error) {
		return notify.NewTelegram(token, chatID, logger)
	}
	if store != nil {
		manager.Repo = store
	}
	if priceStream != nil {
		manager.Prices = priceStream
		manager.Track = priceStream.Track
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{}
	if dbConn != nil {
		healthHandler.DB = dbConn.Gorm
	}
	healthHandler.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := handler.BearerAuth(cfg.Server.BearerToken)
	botHandler := &handler.BotHandler{Manager: manager}
	botHandler.Register(router, auth)
	journalHandler := &handler.JournalHandler{}
	if store != nil {
		journalHandler.Repo = store
	}
	journalHandler.Register(router, auth)

	cronRunner := cronrunner.New(logger, ctx)
	if store != nil {
		if _, err := cronRunner.Add("journal_flush", cfg.Cron.JournalFlush, manager.FlushJournal); err != nil {
			logger.Warn("cron register journal flush failed", zap.Error(err))
		}
	}
	_, err = cronRunner.Add("daily_summary", cfg.Cron.DailySummary, func(ctx context.Context) error {
		manager.DailySummary(ctx)
		return nil
	})
	if err != nil {
		logger.Warn("cron register daily summary failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	manager.StopAll()

	// One last flush so fills from the final ticks reach the journal.
	if store != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := manager.FlushJournal(flushCtx); err != nil {
			logger.Warn("final journal flush failed", zap.Error(err))
		}
		cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
