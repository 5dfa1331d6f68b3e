package storage

import (
	"context"
	"time"

	"solana-trading-assistant/internal/domain"
)

// TradeRecordStore provides access to trade_records storage (the execution journal).
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByToken retrieves all trades for a token, ordered by created_at ASC.
	GetByToken(ctx context.Context, tokenAddress string) ([]*domain.TradeRecord, error)

	// Recent retrieves the newest trades, ordered by created_at DESC.
	// A non-positive limit returns every trade.
	Recent(ctx context.Context, limit int) ([]*domain.TradeRecord, error)

	// GetAll retrieves all trades, ordered by created_at ASC.
	GetAll(ctx context.Context) ([]*domain.TradeRecord, error)
}

// SignalStore provides access to trading_signals storage (signal history).
type SignalStore interface {
	// InsertBulk appends signals. Fails entire batch on a duplicate signal ID.
	InsertBulk(ctx context.Context, signals []domain.TradingSignal) error

	// Recent retrieves the newest signals, ordered by created_at DESC.
	Recent(ctx context.Context, limit int) ([]domain.TradingSignal, error)

	// GetByToken retrieves signals for a token within [start, end] (inclusive), ordered by created_at ASC.
	GetByToken(ctx context.Context, tokenAddress string, start, end time.Time) ([]domain.TradingSignal, error)
}

// PortfolioSnapshotStore provides access to portfolio_snapshots storage.
type PortfolioSnapshotStore interface {
	// Insert adds a snapshot. Returns ErrDuplicateKey if a snapshot exists at the same timestamp.
	Insert(ctx context.Context, s *domain.PortfolioSnapshot) error

	// GetByTimeRange retrieves snapshots within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.PortfolioSnapshot, error)

	// Latest retrieves the newest snapshot. Returns ErrNotFound if the store is empty.
	Latest(ctx context.Context) (*domain.PortfolioSnapshot, error)
}
