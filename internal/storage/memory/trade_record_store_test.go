package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/storage"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func trade(id, token string, offsetSec int) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID:      id,
		SignalID:     "sig-" + id,
		TokenAddress: token,
		Action:       domain.ActionBuy,
		Status:       domain.TradeStatusExecuted,
		AmountUSD:    100,
		CreatedAt:    baseTime.Add(time.Duration(offsetSec) * time.Second),
	}
}

func TestTradeRecordStore_InsertAndGet(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	tr := trade("trade1", "tokenA", 0)
	tr.RealizedPnL = 12.5

	if err := store.Insert(ctx, tr); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "trade1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.RealizedPnL != 12.5 {
		t.Errorf("RealizedPnL mismatch: got %f, want %f", got.RealizedPnL, 12.5)
	}

	// Returned records are copies.
	got.AmountUSD = 0
	again, _ := store.GetByID(ctx, "trade1")
	if again.AmountUSD != 100 {
		t.Errorf("store returned shared record: AmountUSD = %f", again.AmountUSD)
	}
}

func TestTradeRecordStore_DuplicateKey(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	tr := trade("trade1", "tokenA", 0)
	if err := store.Insert(ctx, tr); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, tr)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeRecordStore_NotFound(t *testing.T) {
	store := NewTradeRecordStore()

	_, err := store.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTradeRecordStore_InsertBulk(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		trade("t2", "tokenA", 20),
		trade("t1", "tokenA", 10),
		trade("t3", "tokenB", 30),
	}

	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, _ := store.GetByToken(ctx, "tokenA")
	if len(result) != 2 {
		t.Fatalf("Expected 2 trades for tokenA, got %d", len(result))
	}
	if result[0].TradeID != "t1" {
		t.Errorf("Results not ordered by created_at: first = %s", result[0].TradeID)
	}
}

func TestTradeRecordStore_InsertBulkPartialDuplicate(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	if err := store.Insert(ctx, trade("t1", "tokenA", 0)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	trades := []*domain.TradeRecord{
		trade("t2", "tokenA", 1),
		trade("t1", "tokenA", 2), // duplicate
	}

	err := store.InsertBulk(ctx, trades)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Verify all-or-nothing
	all, _ := store.GetAll(ctx)
	if len(all) != 1 {
		t.Errorf("Expected 1 trade (no partial insert), got %d", len(all))
	}
}

func TestTradeRecordStore_Recent(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c", "d"} {
		if err := store.Insert(ctx, trade(id, "tokenA", i)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(recent))
	}
	if recent[0].TradeID != "d" || recent[1].TradeID != "c" {
		t.Errorf("Recent order = [%s %s], want [d c]", recent[0].TradeID, recent[1].TradeID)
	}

	all, _ := store.Recent(ctx, 0)
	if len(all) != 4 {
		t.Errorf("Recent(0) returned %d trades, want 4", len(all))
	}
}

func TestTradeRecordStore_InvalidInput(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	err := store.Insert(ctx, nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	err = store.Insert(ctx, &domain.TradeRecord{TradeID: ""})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty ID, got %v", err)
	}
}
