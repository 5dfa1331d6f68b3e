package domain

import "time"

// PortfolioSnapshot is a periodic sample of ledger totals.
// Corresponds to the portfolio_snapshots table in ClickHouse.
type PortfolioSnapshot struct {
	Timestamp          time.Time `json:"timestamp"`
	TotalPositions     uint32    `json:"total_positions"`
	TotalValueUSD      float64   `json:"total_value_usd"`
	TotalUnrealizedPnL float64   `json:"total_unrealized_pnl"`
	DailyPnL           float64   `json:"daily_pnl"`
	TotalPnL           float64   `json:"total_pnl"`
	MaxDrawdown        float64   `json:"max_drawdown"`
}
