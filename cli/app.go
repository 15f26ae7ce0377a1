package cli

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gofalre.io/fuelstock"
	"gofalre.io/fuelstock/config"
	"gofalre.io/fuelstock/driver"
	"gofalre.io/fuelstock/event"
	"gofalre.io/fuelstock/stock"
)

// app 把設定、連線與帳本組起來，每個子命令各建一次
type app struct {
	cfg    config.Config
	logger *zap.Logger

	db     *driver.DB
	redis  *redis.Client
	nats   *nats.Conn
	ledger *fuelstock.Ledger
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(opts.debug)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	if a.db, err = driver.ConnectSQL(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns); err != nil {
		a.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.Redis.Addr != "" {
		if a.redis, err = driver.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			// 快取不是必要元件，連不上就直接查資料庫
			logger.Warn("redis unavailable, stock level cache disabled", zap.Error(err))
			a.redis = nil
		}
	}

	if cfg.NATS.URL != "" {
		if a.nats, err = driver.ConnectNATS(cfg.NATS.URL, cfg.NATS.Name, logger); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
	}

	stockRepo := stock.NewRepository(a.db.Pool, stock.NewLevelCache(a.redis, cfg.Redis.LevelTTL, logger), logger)
	messageRepo := event.NewRepository(a.db.Pool, logger)
	tm := driver.NewTransactionManager(a.db.Pool, logger)

	a.ledger = fuelstock.NewLedger(stockRepo, messageRepo, tm,
		fuelstock.NewEventManager(a.nats, logger),
		fuelstock.Options{
			SeedProducts:        cfg.Ledger.SeedProducts,
			SeedReorderLevel:    decimal.NewNullDecimal(cfg.Ledger.SeedReorderLevel),
			DefaultReorderLevel: decimal.NewNullDecimal(cfg.Ledger.DefaultReorderLevel),
		},
		logger)

	return a, nil
}

func (a *app) Close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("failed to close ledger", zap.Error(err))
		}
	}
	if a.nats != nil {
		if err := a.nats.Drain(); err != nil {
			a.logger.Warn("failed to drain nats", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	a.db.Close()
	_ = a.logger.Sync()
}
