package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
// Signals are values, so stored and returned slices never alias caller memory.
type SignalStore struct {
	mu      sync.RWMutex
	signals []domain.TradingSignal // insertion order
	ids     map[string]struct{}
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		ids: make(map[string]struct{}),
	}
}

// InsertBulk appends signals. Fails entire batch on a duplicate signal ID.
func (s *SignalStore) InsertBulk(_ context.Context, signals []domain.TradingSignal) error {
	if len(signals) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(signals))
	for _, sig := range signals {
		if sig.ID == "" || sig.TokenAddress == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.ids[sig.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[sig.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[sig.ID] = struct{}{}
	}

	for _, sig := range signals {
		s.signals = append(s.signals, sig)
		s.ids[sig.ID] = struct{}{}
	}
	return nil
}

// Recent retrieves the newest signals, ordered by created_at DESC.
func (s *SignalStore) Recent(_ context.Context, limit int) ([]domain.TradingSignal, error) {
	s.mu.RLock()
	result := make([]domain.TradingSignal, len(s.signals))
	copy(result, s.signals)
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByToken retrieves signals for a token within [start, end] (inclusive), ordered by created_at ASC.
func (s *SignalStore) GetByToken(_ context.Context, tokenAddress string, start, end time.Time) ([]domain.TradingSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.TradingSignal
	for _, sig := range s.signals {
		if sig.TokenAddress != tokenAddress {
			continue
		}
		if sig.CreatedAt.Before(start) || sig.CreatedAt.After(end) {
			continue
		}
		result = append(result, sig)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

var _ storage.SignalStore = (*SignalStore)(nil)
