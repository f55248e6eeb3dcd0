package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"upbit-auto-trader/internal/config"
	"upbit-auto-trader/internal/database"
	"upbit-auto-trader/internal/ledger"
	"upbit-auto-trader/internal/logger"
	"upbit-auto-trader/internal/models"
	"upbit-auto-trader/internal/portfolio"
	"upbit-auto-trader/internal/secrets"
	tradesignal "upbit-auto-trader/internal/signal"
	"upbit-auto-trader/internal/trader"
	"upbit-auto-trader/internal/upbit"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}

	secretsMgr, err := secrets.NewManager(cfg.Secrets.KeyFile)
	if err != nil {
		log.Fatal("Failed to initialize secrets manager", zap.Error(err))
	}

	if err := ensureDefaultUser(db, &cfg); err != nil {
		log.Fatal("Failed to bootstrap default user", zap.Error(err))
	}

	led := ledger.New(db, log)
	engine := tradesignal.NewEngine(log)
	sizer := portfolio.NewSizer()

	factory := func(accessKey, secretKey string) upbit.RestClientInterface {
		return upbit.NewRestClient(&cfg.Upbit, accessKey, secretKey, log)
	}

	orch := trader.NewOrchestrator(log, &cfg, db, led, engine, sizer, secretsMgr, factory)
	recommender := trader.NewRecommender(log, &cfg, led, engine)
	api := trader.NewAPIServer(log, &cfg, db, led, orch, recommender)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go orch.Run(ctx)

	go func() {
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("API server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	log.Info("Shutdown complete")
}

// ensureDefaultUser creates the single trading user on first run so the API
// is usable before any credentials are stored.
func ensureDefaultUser(db *gorm.DB, cfg *config.Config) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	user := models.User{
		Email:    "trader@localhost",
		Strategy: cfg.Trading.DefaultStrategy,
	}
	return db.Create(&user).Error
}
