package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/storage"
)

// SignalStore implements storage.SignalStore using ClickHouse.
type SignalStore struct {
	conn *Conn
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(conn *Conn) *SignalStore {
	return &SignalStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

const selectSignalColumns = `
	SELECT
		signal_id, token_address, action, confidence, risk_level,
		entry_price, target_price, stop_loss, position_size, reasoning,
		technical_score, fundamental_score, sentiment_score, created_at
	FROM trading_signals FINAL
`

// InsertBulk appends signals. Fails entire batch on a duplicate signal ID.
func (s *SignalStore) InsertBulk(ctx context.Context, signals []domain.TradingSignal) error {
	if len(signals) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(signals))
	ids := make([]string, 0, len(signals))
	for _, sig := range signals {
		if sig.ID == "" || sig.TokenAddress == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[sig.ID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[sig.ID] = struct{}{}
		ids = append(ids, sig.ID)
	}

	// ReplacingMergeTree would silently merge duplicates; keep append-only semantics.
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM trading_signals FINAL WHERE signal_id IN (?)`, ids).Scan(&count)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trading_signals (
			signal_id, token_address, action, confidence, risk_level,
			entry_price, target_price, stop_loss, position_size, reasoning,
			technical_score, fundamental_score, sentiment_score, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sig := range signals {
		err = batch.Append(
			sig.ID, sig.TokenAddress, string(sig.Action), sig.Confidence, string(sig.RiskTier),
			sig.EntryPrice, sig.TargetPrice, sig.StopLoss, sig.PositionSize, sig.Reasoning,
			sig.TechnicalScore, sig.FundamentalScore, sig.SentimentScore, sig.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// Recent retrieves the newest signals, ordered by created_at DESC.
func (s *SignalStore) Recent(ctx context.Context, limit int) ([]domain.TradingSignal, error) {
	query := selectSignalColumns + ` ORDER BY created_at DESC, signal_id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// GetByToken retrieves signals for a token within [start, end] (inclusive), ordered by created_at ASC.
func (s *SignalStore) GetByToken(ctx context.Context, tokenAddress string, start, end time.Time) ([]domain.TradingSignal, error) {
	query := selectSignalColumns + `
		WHERE token_address = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC, signal_id ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenAddress, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query signals by token: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

func scanSignals(rows chRows) ([]domain.TradingSignal, error) {
	var signals []domain.TradingSignal

	for rows.Next() {
		var (
			sig           domain.TradingSignal
			action, level string
		)
		err := rows.Scan(
			&sig.ID, &sig.TokenAddress, &action, &sig.Confidence, &level,
			&sig.EntryPrice, &sig.TargetPrice, &sig.StopLoss, &sig.PositionSize, &sig.Reasoning,
			&sig.TechnicalScore, &sig.FundamentalScore, &sig.SentimentScore, &sig.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		sig.Action = domain.Action(action)
		sig.RiskTier = domain.RiskTier(level)
		sig.CreatedAt = sig.CreatedAt.UTC()
		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}

	return signals, nil
}
