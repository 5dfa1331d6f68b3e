package main

import (
	"context"
	"fmt"

	"solana-trading-assistant/internal/config"
	"solana-trading-assistant/internal/storage"
	chstore "solana-trading-assistant/internal/storage/clickhouse"
	"solana-trading-assistant/internal/storage/memory"
	"solana-trading-assistant/internal/storage/migrations"
	pgstore "solana-trading-assistant/internal/storage/postgres"
)

// stores holds the persistence used by the assistant.
type stores struct {
	trades    storage.TradeRecordStore
	signals   storage.SignalStore
	snapshots storage.PortfolioSnapshotStore
}

// createStores opens memory or database stores. With migrate set the schemas
// are applied before the stores are returned.
func createStores(ctx context.Context, sc config.StorageConfig, migrate bool) (*stores, func(), error) {
	if sc.UseMemory {
		return &stores{
			trades:    memory.NewTradeRecordStore(),
			signals:   memory.NewSignalStore(),
			snapshots: memory.NewPortfolioSnapshotStore(),
		}, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, sc.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	// ClickHouse
	var chConn *chstore.Conn
	if migrate {
		chConn, err = migrations.RunClickhouseMigrations(ctx, sc.ClickHouseDSN)
	} else {
		chConn, err = chstore.NewConn(ctx, sc.ClickHouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	s := &stores{
		// PostgreSQL: the trade journal
		trades: pgstore.NewTradeRecordStore(pool),

		// ClickHouse: analytics history
		signals:   chstore.NewSignalStore(chConn),
		snapshots: chstore.NewPortfolioSnapshotStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return s, cleanup, nil
}
