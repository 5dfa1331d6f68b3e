// Package metrics computes trade performance statistics over the execution journal.
package metrics

import (
	"context"
	"fmt"
	"time"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/observability"
	"solana-trading-assistant/internal/storage"
)

// Aggregator computes performance from trade records.
type Aggregator struct {
	tradeRecordStore storage.TradeRecordStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(tradeStore storage.TradeRecordStore) *Aggregator {
	return &Aggregator{tradeRecordStore: tradeStore}
}

// Compute loads the newest limit records (all when limit <= 0) and returns
// their performance. An empty journal yields a zero Performance.
func (a *Aggregator) Compute(ctx context.Context, limit int) (*Performance, error) {
	start := time.Now()
	trades, err := a.tradeRecordStore.Recent(ctx, limit)
	observability.RecordDBQuery("journal", "recent", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	return computeFromTrades(trades), nil
}

// ComputeForToken returns the performance of one token's records.
func (a *Aggregator) ComputeForToken(ctx context.Context, token string) (*Performance, error) {
	start := time.Now()
	trades, err := a.tradeRecordStore.GetByToken(ctx, token)
	observability.RecordDBQuery("journal", "by_token", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("load trades for %s: %w", token, err)
	}
	return computeFromTrades(trades), nil
}

// ComputeFrom computes performance over records already in memory.
func ComputeFrom(trades []*domain.TradeRecord) *Performance {
	return computeFromTrades(trades)
}
