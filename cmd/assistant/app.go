package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"solana-trading-assistant/internal/cache"
	"solana-trading-assistant/internal/config"
	"solana-trading-assistant/internal/jupiter"
	"solana-trading-assistant/internal/marketdata"
	"solana-trading-assistant/internal/scoring"
	"solana-trading-assistant/internal/signal"
	"solana-trading-assistant/internal/storage"
)

var errNoBirdeyeKey = errors.New("birdeye api key is required (BIRDEYE_API_KEY)")

// analysis groups the components that turn token addresses into signals.
type analysis struct {
	cache     cache.Cache
	jupiter   *jupiter.Client
	provider  *marketdata.Provider
	engine    *scoring.Engine
	assembler *signal.Assembler
	close     func()
}

// newAnalysis builds the market data provider, scoring engine and assembler.
// publisher may be nil.
func newAnalysis(ctx context.Context, cfg *config.Config, history storage.SignalStore, publisher signal.Publisher, logger zerolog.Logger) (*analysis, error) {
	if cfg.Birdeye.APIKey == "" {
		return nil, errNoBirdeyeKey
	}

	var (
		c       cache.Cache
		closeFn = func() {}
	)
	if cfg.Redis.Addr != "" {
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		c = r
		closeFn = func() { r.Close() }
	} else {
		c = cache.NewMemory()
	}

	jup := jupiter.NewClient(jupiter.Config{
		BaseURL: cfg.Jupiter.BaseURL,
		APIKey:  cfg.Jupiter.APIKey,
		RPS:     cfg.Jupiter.RPS,
		Logger:  logger,
	})

	var mobula *marketdata.MobulaClient
	if cfg.Mobula.APIKey != "" {
		mobula = marketdata.NewMobulaClient(marketdata.MobulaConfig{
			ClientConfig: marketdata.ClientConfig{
				BaseURL: cfg.Mobula.BaseURL,
				APIKey:  cfg.Mobula.APIKey,
				RPS:     cfg.Mobula.RPS,
				Logger:  logger,
			},
			PulseURL: cfg.Mobula.PulseURL,
		})
	} else {
		logger.Warn().Msg("MOBULA_API_KEY not set, mobula candles and new listings disabled")
	}

	provider, err := marketdata.NewProvider(marketdata.Options{
		Birdeye: marketdata.NewBirdeyeClient(marketdata.ClientConfig{
			BaseURL: cfg.Birdeye.BaseURL,
			APIKey:  cfg.Birdeye.APIKey,
			RPS:     cfg.Birdeye.RPS,
			Logger:  logger,
		}),
		Mobula:         mobula,
		Impact:         jup,
		Cache:          c,
		SnapshotTTL:    cfg.MarketData.SnapshotTTL,
		IndicatorTTL:   cfg.MarketData.IndicatorTTL,
		CandleInterval: cfg.MarketData.CandleInterval,
		CandleCount:    cfg.MarketData.CandleCount,
		Workers:        cfg.MarketData.Workers,
		Logger:         logger,
	})
	if err != nil {
		closeFn()
		return nil, fmt.Errorf("market data provider: %w", err)
	}

	engine := scoring.NewEngine(cfg.Risk)
	assembler := signal.New(signal.Options{
		Snapshots:    provider,
		Indicators:   provider,
		Engine:       engine,
		History:      history,
		Publisher:    publisher,
		Workers:      cfg.Trading.Workers,
		TokenTimeout: cfg.Trading.TokenTimeout,
		Logger:       logger,
	})

	return &analysis{
		cache:     c,
		jupiter:   jup,
		provider:  provider,
		engine:    engine,
		assembler: assembler,
		close:     closeFn,
	}, nil
}
