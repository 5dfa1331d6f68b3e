package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-trading-assistant/internal/domain"
	"solana-trading-assistant/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const insertTradeRecordQuery = `
	INSERT INTO trade_records (
		trade_id, signal_id, token_address, action, status,
		amount_usd, amount_base_units, price, confidence, risk_level,
		position_size, realized_pnl, tx_id, reason, paper, created_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16
	)
`

const selectTradeRecordColumns = `
	SELECT
		trade_id, signal_id, token_address, action, status,
		amount_usd, amount_base_units, price, confidence, risk_level,
		position_size, realized_pnl, tx_id, reason, paper, created_at
	FROM trade_records
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeRecordQuery, tradeRecordArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertTradeRecordQuery, tradeRecordArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	row := s.pool.QueryRow(ctx, selectTradeRecordColumns+` WHERE trade_id = $1`, tradeID)
	t, err := scanTradeRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetByToken retrieves all trades for a token, ordered by created_at ASC.
func (s *TradeRecordStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.TradeRecord, error) {
	query := selectTradeRecordColumns + `
		WHERE token_address = $1
		ORDER BY created_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("get trade records by token: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// Recent retrieves the newest trades, ordered by created_at DESC.
func (s *TradeRecordStore) Recent(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	query := selectTradeRecordColumns + ` ORDER BY created_at DESC, trade_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get recent trade records: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// GetAll retrieves all trades, ordered by created_at ASC.
func (s *TradeRecordStore) GetAll(ctx context.Context) ([]*domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, selectTradeRecordColumns+` ORDER BY created_at ASC, trade_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("get all trade records: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

func tradeRecordArgs(t *domain.TradeRecord) []any {
	return []any{
		t.TradeID, t.SignalID, t.TokenAddress, string(t.Action), string(t.Status),
		t.AmountUSD, t.AmountBaseUnits, t.Price, t.Confidence, string(t.RiskTier),
		t.PositionSize, t.RealizedPnL, t.TxID, t.Reason, t.Paper, t.CreatedAt.UTC(),
	}
}

// scanTradeRecord scans a single row into a TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var (
		t                     domain.TradeRecord
		action, status, level string
	)

	err := row.Scan(
		&t.TradeID, &t.SignalID, &t.TokenAddress, &action, &status,
		&t.AmountUSD, &t.AmountBaseUnits, &t.Price, &t.Confidence, &level,
		&t.PositionSize, &t.RealizedPnL, &t.TxID, &t.Reason, &t.Paper, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Action = domain.Action(action)
	t.Status = domain.TradeStatus(status)
	t.RiskTier = domain.RiskTier(level)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

// scanTradeRecords scans multiple rows into a slice of TradeRecord.
func scanTradeRecords(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}

	return trades, nil
}
