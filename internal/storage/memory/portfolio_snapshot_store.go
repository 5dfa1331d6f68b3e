package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/storage"
)

// PortfolioSnapshotStore is an in-memory implementation of storage.PortfolioSnapshotStore.
type PortfolioSnapshotStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.PortfolioSnapshot // keyed by timestamp (unix ms)
}

// NewPortfolioSnapshotStore creates a new in-memory portfolio snapshot store.
func NewPortfolioSnapshotStore() *PortfolioSnapshotStore {
	return &PortfolioSnapshotStore{
		data: make(map[int64]*domain.PortfolioSnapshot),
	}
}

// Insert adds a snapshot. Returns ErrDuplicateKey if a snapshot exists at the same timestamp.
func (s *PortfolioSnapshotStore) Insert(_ context.Context, snap *domain.PortfolioSnapshot) error {
	if snap == nil || snap.Timestamp.IsZero() {
		return storage.ErrInvalidInput
	}

	key := snap.Timestamp.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *snap
	s.data[key] = &copy
	return nil
}

// GetByTimeRange retrieves snapshots within [start, end] (inclusive), ordered by timestamp ASC.
func (s *PortfolioSnapshotStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.PortfolioSnapshot, error) {
	startMs, endMs := start.UnixMilli(), end.UnixMilli()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PortfolioSnapshot
	for key, snap := range s.data {
		if key >= startMs && key <= endMs {
			copy := *snap
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// Latest retrieves the newest snapshot. Returns ErrNotFound if the store is empty.
func (s *PortfolioSnapshotStore) Latest(_ context.Context) (*domain.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.PortfolioSnapshot
	for _, snap := range s.data {
		if latest == nil || snap.Timestamp.After(latest.Timestamp) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

var _ storage.PortfolioSnapshotStore = (*PortfolioSnapshotStore)(nil)
