package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/storage"
)

// PortfolioSnapshotStore implements storage.PortfolioSnapshotStore using ClickHouse.
type PortfolioSnapshotStore struct {
	conn *Conn
}

// NewPortfolioSnapshotStore creates a new PortfolioSnapshotStore.
func NewPortfolioSnapshotStore(conn *Conn) *PortfolioSnapshotStore {
	return &PortfolioSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PortfolioSnapshotStore = (*PortfolioSnapshotStore)(nil)

const selectSnapshotColumns = `
	SELECT
		timestamp, total_positions, total_value_usd, total_unrealized_pnl,
		daily_pnl, total_pnl, max_drawdown
	FROM portfolio_snapshots FINAL
`

// Insert adds a snapshot. Returns ErrDuplicateKey if a snapshot exists at the same timestamp.
func (s *PortfolioSnapshotStore) Insert(ctx context.Context, snap *domain.PortfolioSnapshot) error {
	if snap == nil || snap.Timestamp.IsZero() {
		return storage.ErrInvalidInput
	}

	ts := snap.Timestamp.UTC().Truncate(time.Millisecond)

	exists, err := s.exists(ctx, ts)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO portfolio_snapshots (
			timestamp, total_positions, total_value_usd, total_unrealized_pnl,
			daily_pnl, total_pnl, max_drawdown
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		ts, snap.TotalPositions, snap.TotalValueUSD, snap.TotalUnrealizedPnL,
		snap.DailyPnL, snap.TotalPnL, snap.MaxDrawdown,
	)
	if err != nil {
		return fmt.Errorf("insert portfolio snapshot: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves snapshots within [start, end] (inclusive), ordered by timestamp ASC.
func (s *PortfolioSnapshotStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.PortfolioSnapshot, error) {
	query := selectSnapshotColumns + `
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query snapshots by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// Latest retrieves the newest snapshot. Returns ErrNotFound if the store is empty.
func (s *PortfolioSnapshotStore) Latest(ctx context.Context) (*domain.PortfolioSnapshot, error) {
	rows, err := s.conn.Query(ctx, selectSnapshotColumns+` ORDER BY timestamp DESC LIMIT 1`)
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}
	return snaps[0], nil
}

func (s *PortfolioSnapshotStore) exists(ctx context.Context, ts time.Time) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM portfolio_snapshots FINAL WHERE timestamp = ?`, ts).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanSnapshots(rows chRows) ([]*domain.PortfolioSnapshot, error) {
	var snaps []*domain.PortfolioSnapshot

	for rows.Next() {
		var snap domain.PortfolioSnapshot
		err := rows.Scan(
			&snap.Timestamp, &snap.TotalPositions, &snap.TotalValueUSD, &snap.TotalUnrealizedPnL,
			&snap.DailyPnL, &snap.TotalPnL, &snap.MaxDrawdown,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snap.Timestamp = snap.Timestamp.UTC()
		snaps = append(snaps, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snaps, nil
}
