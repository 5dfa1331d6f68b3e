package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/storage"
)

func signalAt(id, token string, offsetSec int) domain.TradingSignal {
	return domain.TradingSignal{
		ID:           id,
		TokenAddress: token,
		Action:       domain.ActionHold,
		Confidence:   55,
		RiskTier:     domain.RiskMedium,
		CreatedAt:    baseTime.Add(time.Duration(offsetSec) * time.Second),
	}
}

func TestSignalStore_InsertBulkAndRecent(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []domain.TradingSignal{
		signalAt("s1", "tokenA", 0),
		signalAt("s2", "tokenB", 10),
		signalAt("s3", "tokenA", 20),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "s3" || recent[1].ID != "s2" {
		t.Errorf("Recent = %+v, want [s3 s2]", recent)
	}
}

func TestSignalStore_DuplicateAllOrNothing(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []domain.TradingSignal{signalAt("s1", "tokenA", 0)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []domain.TradingSignal{
		signalAt("s2", "tokenA", 1),
		signalAt("s1", "tokenA", 2),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	all, _ := store.Recent(ctx, 0)
	if len(all) != 1 {
		t.Errorf("Expected 1 signal (no partial insert), got %d", len(all))
	}
}

func TestSignalStore_GetByToken(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, []domain.TradingSignal{
		signalAt("s1", "tokenA", 0),
		signalAt("s2", "tokenA", 60),
		signalAt("s3", "tokenA", 120),
		signalAt("s4", "tokenB", 60),
	})

	got, err := store.GetByToken(ctx, "tokenA", baseTime, baseTime.Add(60*time.Second))
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "s1" || got[1].ID != "s2" {
		t.Errorf("GetByToken = %+v, want [s1 s2]", got)
	}
}

func TestSignalStore_InvalidInput(t *testing.T) {
	store := NewSignalStore()

	err := store.InsertBulk(context.Background(), []domain.TradingSignal{{ID: "", TokenAddress: "x"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
